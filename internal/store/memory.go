package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"brandscan/internal/models"
)

// MemoryStore is an in-process ResultStore for local runs and tests.
// Review flags live in their own map, mirroring the durable store's
// separation from rerun-overwritten results.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*models.Document
	statuses  map[string]models.ProcessingStatus
	reviews   map[string]map[models.ReviewKey]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*models.Document),
		statuses:  make(map[string]models.ProcessingStatus),
		reviews:   make(map[string]map[models.ReviewKey]bool),
	}
}

// CreateDocument stores a new document record.
func (s *MemoryStore) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *doc
	stored.Results = make(map[string]models.BrandDetection, len(doc.Results))
	for key, detection := range doc.Results {
		stored.Results[key] = detection
	}
	s.documents[doc.ID] = &stored
	return nil
}

// GetDocument returns a copy of the document with review flags folded in.
func (s *MemoryStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}

	doc := *stored
	doc.Results = make(map[string]models.BrandDetection, len(stored.Results))
	for key, detection := range stored.Results {
		if detection.Reviewed != nil {
			copied := make(map[string]bool, len(detection.Reviewed))
			for brand, reviewed := range detection.Reviewed {
				copied[brand] = reviewed
			}
			detection.Reviewed = copied
		}
		doc.Results[key] = detection
	}
	applyReviews(&doc, s.reviews[id])
	return &doc, nil
}

// ListDocuments returns all stored documents, newest first.
func (s *MemoryStore) ListDocuments(_ context.Context) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*models.Document, 0, len(s.documents))
	for _, stored := range s.documents {
		doc := *stored
		docs = append(docs, &doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocument removes a document, its review flags and its progress
// snapshot.
func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(s.documents, id)
	delete(s.statuses, id)
	delete(s.reviews, id)
	return nil
}

// UpdateDocumentStatus sets the document's overall status.
func (s *MemoryStore) UpdateDocumentStatus(_ context.Context, id string, status models.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = status
	return nil
}

// SaveBrandDetection stores one page's terminal result.
func (s *MemoryStore) SaveBrandDetection(_ context.Context, id string, detection models.BrandDetection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	if doc.Results == nil {
		doc.Results = make(map[string]models.BrandDetection)
	}
	doc.Results[models.PageKey(detection.PageNumber)] = detection
	return nil
}

// SaveProcessingStatus stores a progress snapshot.
func (s *MemoryStore) SaveProcessingStatus(_ context.Context, status models.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := status
	copied.PageStatus = make(map[string]models.PageState, len(status.PageStatus))
	for key, state := range status.PageStatus {
		copied.PageStatus[key] = state
	}
	s.statuses[status.DocumentID] = copied
	return nil
}

// GetProcessingStatus returns the latest stored progress snapshot.
func (s *MemoryStore) GetProcessingStatus(_ context.Context, id string) (models.ProcessingStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[id]
	if !ok {
		return models.ProcessingStatus{}, ErrDocumentNotFound
	}
	return status, nil
}

// GetReviewStatus returns all review flags of a document.
func (s *MemoryStore) GetReviewStatus(_ context.Context, id string) (map[models.ReviewKey]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reviews := make(map[models.ReviewKey]bool, len(s.reviews[id]))
	for key, reviewed := range s.reviews[id] {
		reviews[key] = reviewed
	}
	return reviews, nil
}

// SetReviewStatus toggles the review flag of one detected brand.
func (s *MemoryStore) SetReviewStatus(_ context.Context, id string, pageNumber int, brand string, reviewed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	detection, found := doc.Results[models.PageKey(pageNumber)]
	if !found || !containsFold(detection.Brands, brand) {
		return fmt.Errorf("store: %w: %q on page %d of document %s", ErrBrandNotFound, brand, pageNumber, id)
	}

	if s.reviews[id] == nil {
		s.reviews[id] = make(map[models.ReviewKey]bool)
	}
	key := models.ReviewKey{PageNumber: pageNumber, Brand: strings.ToLower(strings.TrimSpace(brand))}
	s.reviews[id][key] = reviewed
	return nil
}
