package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"brandscan/internal/logger"
	"brandscan/internal/models"
)

// reviewsSubcollection holds review flags keyed "page:brand" under each
// document, outside the rerun-overwritten result fields.
const reviewsSubcollection = "reviews"

// reviewRecord is the Firestore shape of one review flag.
type reviewRecord struct {
	PageNumber int    `firestore:"pageNumber"`
	Brand      string `firestore:"brand"`
	Reviewed   bool   `firestore:"reviewed"`
}

// FirestoreStore persists documents and detections in a Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	log        zerolog.Logger
}

// NewFirestoreStore creates a store from environment configuration.
// It expects either GOOGLE_CREDENTIALS inline JSON or a
// GOOGLE_APPLICATION_CREDENTIALS path, falling back to application
// default credentials.
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("store: project ID must be provided to create a Firestore client")
	}
	if collection == "" {
		collection = "documents"
	}

	var opts []option.ClientOption
	if opt := credentialOption(); opt != nil {
		opts = append(opts, opt)
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create Firestore client: %w", err)
	}

	return NewFirestoreStoreWithClient(client, collection), nil
}

// credentialOption resolves explicit credentials from the environment:
// inline JSON first, then a service account file path. Nil means let
// the client library use application default credentials.
func credentialOption() option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return option.WithCredentialsJSON([]byte(credJSON))
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return option.WithCredentialsFile(credFile)
	}
	return nil
}

// NewFirestoreStoreWithClient creates a store with an explicit client (for testing).
func NewFirestoreStoreWithClient(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: collection,
		log:        logger.WithComponent("firestore-store"),
	}
}

// Close releases the underlying Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

// CreateDocument stores a new document record.
func (s *FirestoreStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	if _, err := s.docRef(doc.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("store: failed to create document %s: %w", doc.ID, err)
	}
	s.log.Info().Str("document_id", doc.ID).Str("filename", doc.Filename).Msg("Document created")
	return nil
}

// GetDocument returns a document with its per-page results.
func (s *FirestoreStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	snap, err := s.docRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("store: failed to get document %s: %w", id, err)
	}

	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("store: failed to decode document %s: %w", id, err)
	}

	reviews, err := s.GetReviewStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	applyReviews(&doc, reviews)
	return &doc, nil
}

// applyReviews folds persisted review flags into the per-page results.
// Flags for brands no longer detected after a rerun stay in storage but
// are not surfaced.
func applyReviews(doc *models.Document, reviews map[models.ReviewKey]bool) {
	for key, reviewed := range reviews {
		detection, ok := doc.PageResult(key.PageNumber)
		if !ok {
			continue
		}
		for _, brand := range detection.Brands {
			if strings.EqualFold(brand, key.Brand) {
				if detection.Reviewed == nil {
					detection.Reviewed = make(map[string]bool)
				}
				detection.Reviewed[brand] = reviewed
				doc.Results[models.PageKey(key.PageNumber)] = detection
			}
		}
	}
}

// ListDocuments returns all stored documents, newest first.
func (s *FirestoreStore) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	snaps, err := s.client.Collection(s.collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("store: failed to list documents: %w", err)
	}

	docs := make([]*models.Document, 0, len(snaps))
	for _, snap := range snaps {
		var doc models.Document
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("store: failed to decode document %s: %w", snap.Ref.ID, err)
		}
		docs = append(docs, &doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocument removes a document, its review flags and its progress
// snapshot.
func (s *FirestoreStore) DeleteDocument(ctx context.Context, id string) error {
	ref := s.docRef(id)
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("store: failed to get document %s: %w", id, err)
	}

	reviews, err := ref.Collection(reviewsSubcollection).Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("store: failed to list reviews of document %s: %w", id, err)
	}
	for _, snap := range reviews {
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("store: failed to delete review %s: %w", snap.Ref.ID, err)
		}
	}

	// The snapshot may never have been written; its absence is fine.
	if _, err := s.client.Collection(s.collection + "_status").Doc(id).Delete(ctx); err != nil {
		s.log.Warn().Err(err).Str("document_id", id).Msg("Failed to delete progress snapshot")
	}

	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("store: failed to delete document %s: %w", id, err)
	}
	s.log.Info().Str("document_id", id).Msg("Document deleted")
	return nil
}

// UpdateDocumentStatus sets the document's overall status.
func (s *FirestoreStore) UpdateDocumentStatus(ctx context.Context, id string, docStatus models.DocumentStatus) error {
	updates := []firestore.Update{
		{Path: "status", Value: string(docStatus)},
	}
	if _, err := s.docRef(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("store: failed to update status of document %s: %w", id, err)
	}
	return nil
}

// SaveBrandDetection stores one page's terminal result under the
// document's results map, keyed by page number.
func (s *FirestoreStore) SaveBrandDetection(ctx context.Context, id string, detection models.BrandDetection) error {
	updates := []firestore.Update{
		{Path: fmt.Sprintf("results.%d", detection.PageNumber), Value: detection},
	}
	if _, err := s.docRef(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("store: failed to save page %d of document %s: %w", detection.PageNumber, id, err)
	}
	return nil
}

// SaveProcessingStatus stores a progress snapshot in a sibling document
// so pollers never contend with result writes.
func (s *FirestoreStore) SaveProcessingStatus(ctx context.Context, processing models.ProcessingStatus) error {
	ref := s.client.Collection(s.collection + "_status").Doc(processing.DocumentID)
	if _, err := ref.Set(ctx, processing); err != nil {
		return fmt.Errorf("store: failed to save processing status of document %s: %w", processing.DocumentID, err)
	}
	return nil
}

// GetProcessingStatus returns the latest stored progress snapshot.
func (s *FirestoreStore) GetProcessingStatus(ctx context.Context, id string) (models.ProcessingStatus, error) {
	snap, err := s.client.Collection(s.collection + "_status").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.ProcessingStatus{}, ErrDocumentNotFound
		}
		return models.ProcessingStatus{}, fmt.Errorf("store: failed to get processing status of document %s: %w", id, err)
	}

	var processing models.ProcessingStatus
	if err := snap.DataTo(&processing); err != nil {
		return models.ProcessingStatus{}, fmt.Errorf("store: failed to decode processing status of document %s: %w", id, err)
	}
	return processing, nil
}

// GetReviewStatus returns all review flags of a document.
func (s *FirestoreStore) GetReviewStatus(ctx context.Context, id string) (map[models.ReviewKey]bool, error) {
	snaps, err := s.docRef(id).Collection(reviewsSubcollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("store: failed to list reviews of document %s: %w", id, err)
	}

	reviews := make(map[models.ReviewKey]bool, len(snaps))
	for _, snap := range snaps {
		var rec reviewRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("store: failed to decode review %s: %w", snap.Ref.ID, err)
		}
		reviews[models.ReviewKey{PageNumber: rec.PageNumber, Brand: rec.Brand}] = rec.Reviewed
	}
	return reviews, nil
}

// SetReviewStatus toggles the review flag of one detected brand. The
// flag lives in its own subcollection document so reprocessing the PDF
// never clears it.
func (s *FirestoreStore) SetReviewStatus(ctx context.Context, id string, pageNumber int, brand string, reviewed bool) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	detection, ok := doc.PageResult(pageNumber)
	if !ok || !containsFold(detection.Brands, brand) {
		return fmt.Errorf("store: %w: %q on page %d of document %s", ErrBrandNotFound, brand, pageNumber, id)
	}

	rec := reviewRecord{
		PageNumber: pageNumber,
		Brand:      brand,
		Reviewed:   reviewed,
	}
	ref := s.docRef(id).Collection(reviewsSubcollection).Doc(reviewDocID(pageNumber, brand))
	if _, err := ref.Set(ctx, rec); err != nil {
		return fmt.Errorf("store: failed to set review of %q on page %d: %w", brand, pageNumber, err)
	}
	s.log.Info().
		Str("document_id", id).
		Int("page", pageNumber).
		Str("brand", brand).
		Bool("reviewed", reviewed).
		Msg("Review flag updated")
	return nil
}

// reviewDocID builds a deterministic, rerun-independent document ID for
// a review flag. Brand casing is normalized so the same brand maps to
// the same flag regardless of how a rerun's OCR happened to render it.
func reviewDocID(pageNumber int, brand string) string {
	normalized := strings.ToLower(strings.TrimSpace(brand))
	normalized = strings.ReplaceAll(normalized, "/", "_")
	return fmt.Sprintf("%d:%s", pageNumber, normalized)
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
