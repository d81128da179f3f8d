package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"brandscan/internal/models"
)

func seedDocument(t *testing.T, s *MemoryStore) *models.Document {
	t.Helper()

	doc := &models.Document{
		ID:         "doc-1",
		Filename:   "plans.pdf",
		TotalPages: 2,
		Status:     models.DocumentProcessing,
		CreatedAt:  time.Now(),
	}
	if err := s.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	detection := models.BrandDetection{
		PageNumber: 1,
		Brands:     []string{"Kohler", "Siemens"},
		Status:     models.PageCompleted,
	}
	if err := s.SaveBrandDetection(context.Background(), doc.ID, detection); err != nil {
		t.Fatalf("SaveBrandDetection: %v", err)
	}
	return doc
}

func TestMemoryStoreDocumentRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	seedDocument(t, s)

	doc, err := s.GetDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	detection, ok := doc.PageResult(1)
	if !ok {
		t.Fatal("page 1 result missing")
	}
	if len(detection.Brands) != 2 {
		t.Errorf("brands = %v, want 2 entries", detection.Brands)
	}
}

func TestMemoryStoreGetUnknownDocument(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetDocument(context.Background(), "missing")
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestMemoryStoreReviewToggleRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	seedDocument(t, s)
	ctx := context.Background()

	if err := s.SetReviewStatus(ctx, "doc-1", 1, "Kohler", true); err != nil {
		t.Fatalf("SetReviewStatus: %v", err)
	}

	doc, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	detection, _ := doc.PageResult(1)
	if !detection.Reviewed["Kohler"] {
		t.Errorf("Kohler not flagged reviewed: %v", detection.Reviewed)
	}

	if err := s.SetReviewStatus(ctx, "doc-1", 1, "Kohler", false); err != nil {
		t.Fatalf("SetReviewStatus toggle off: %v", err)
	}
	doc, _ = s.GetDocument(ctx, "doc-1")
	detection, _ = doc.PageResult(1)
	if detection.Reviewed["Kohler"] {
		t.Errorf("Kohler still flagged reviewed after toggle off")
	}
}

func TestMemoryStoreReviewUnknownBrand(t *testing.T) {
	s := NewMemoryStore()
	seedDocument(t, s)

	err := s.SetReviewStatus(context.Background(), "doc-1", 1, "Bosch", true)
	if !errors.Is(err, ErrBrandNotFound) {
		t.Fatalf("err = %v, want ErrBrandNotFound", err)
	}
}

func TestMemoryStoreReviewSurvivesReprocessing(t *testing.T) {
	s := NewMemoryStore()
	seedDocument(t, s)
	ctx := context.Background()

	if err := s.SetReviewStatus(ctx, "doc-1", 1, "Siemens", true); err != nil {
		t.Fatalf("SetReviewStatus: %v", err)
	}

	// A rerun overwrites the page result with fresh (unreviewed) data.
	rerun := models.BrandDetection{
		PageNumber: 1,
		Brands:     []string{"SIEMENS", "Bosch"},
		Status:     models.PageCompleted,
	}
	if err := s.SaveBrandDetection(ctx, "doc-1", rerun); err != nil {
		t.Fatalf("SaveBrandDetection rerun: %v", err)
	}

	doc, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	detection, _ := doc.PageResult(1)
	if !detection.Reviewed["SIEMENS"] {
		t.Errorf("review flag lost after rerun: %v", detection.Reviewed)
	}
	if detection.Reviewed["Bosch"] {
		t.Errorf("Bosch must not inherit a review flag")
	}
}

func TestMemoryStoreListDocumentsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	older := &models.Document{ID: "old", Filename: "a.pdf", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.Document{ID: "new", Filename: "b.pdf", CreatedAt: time.Now()}
	for _, doc := range []*models.Document{older, newer} {
		if err := s.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("listed %d documents, want 2", len(docs))
	}
	if docs[0].ID != "new" || docs[1].ID != "old" {
		t.Errorf("order = [%s %s], want newest first", docs[0].ID, docs[1].ID)
	}
}

func TestMemoryStoreDeleteDocument(t *testing.T) {
	s := NewMemoryStore()
	seedDocument(t, s)
	ctx := context.Background()

	if err := s.SetReviewStatus(ctx, "doc-1", 1, "Kohler", true); err != nil {
		t.Fatalf("SetReviewStatus: %v", err)
	}
	if err := s.SaveProcessingStatus(ctx, models.ProcessingStatus{DocumentID: "doc-1"}); err != nil {
		t.Fatalf("SaveProcessingStatus: %v", err)
	}

	if err := s.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument(ctx, "doc-1"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("GetDocument after delete: err = %v, want ErrDocumentNotFound", err)
	}
	if _, err := s.GetProcessingStatus(ctx, "doc-1"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("GetProcessingStatus after delete: err = %v, want ErrDocumentNotFound", err)
	}
	reviews, err := s.GetReviewStatus(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetReviewStatus: %v", err)
	}
	if len(reviews) != 0 {
		t.Errorf("reviews = %v, want none after delete", reviews)
	}

	if err := s.DeleteDocument(ctx, "doc-1"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("second delete: err = %v, want ErrDocumentNotFound", err)
	}
}

func TestMemoryStoreProcessingStatusSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	status := models.ProcessingStatus{
		DocumentID:         "doc-2",
		Status:             models.DocumentProcessing,
		TotalPages:         4,
		ProcessedPages:     1,
		ProgressPercentage: 25,
		PageStatus: map[string]models.PageState{
			"1": models.PageCompleted,
			"2": models.PageExtracting,
		},
	}
	if err := s.SaveProcessingStatus(ctx, status); err != nil {
		t.Fatalf("SaveProcessingStatus: %v", err)
	}

	// Mutating the caller's map must not leak into the stored snapshot.
	status.PageStatus["2"] = models.PageFailed

	got, err := s.GetProcessingStatus(ctx, "doc-2")
	if err != nil {
		t.Fatalf("GetProcessingStatus: %v", err)
	}
	if got.PageStatus["2"] != models.PageExtracting {
		t.Errorf("snapshot mutated after save: %v", got.PageStatus)
	}
}
