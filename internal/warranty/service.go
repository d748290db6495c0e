package warranty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/warrantysafe/internal/access"
	"github.com/zombor/warrantysafe/internal/engine"
	"github.com/zombor/warrantysafe/internal/lifecycle"
	"github.com/zombor/warrantysafe/internal/record"
	"github.com/zombor/warrantysafe/internal/scanning"
)

// IDGenerator generates unique IDs for warranties
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Processor turns a document into a warranty record and assesses stored records on the
// same clock it processes with
type Processor interface {
	Process(ctx context.Context, doc scanning.Document) (engine.Result, error)
	Classify(rec record.Record) lifecycle.Assessment
}

// Service handles warranty operations
type Service struct {
	db          DB
	processor   Processor
	storage     Storage
	plans       Plans
	notifier    Notifier
	policy      UploadPolicy
	idGenerator IDGenerator
	timeSource  TimeSource

	// mu serialises account balance changes
	mu sync.Mutex
}

// NewService creates a new Service with a UUID generator. Timestamps come from the
// processor's clock when it has one, otherwise from the wall clock.
func NewService(db DB, processor Processor, storage Storage, plans Plans) *Service {
	var clock TimeSource = &defaultTimeSource{}
	if ts, ok := processor.(TimeSource); ok {
		clock = ts
	}
	return NewServiceWithDeps(db, processor, storage, plans, &uuidGenerator{}, clock)
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, processor Processor, storage Storage, plans Plans, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		processor:   processor,
		storage:     storage,
		plans:       plans,
		notifier:    NewLogNotifier(nil),
		policy:      DefaultUploadPolicy,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// SetNotifier replaces the reminder notifier
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetUploadPolicy replaces the upload policy
func (s *Service) SetUploadPolicy(p UploadPolicy) {
	s.policy = p
}

var (
	filenameJunk   = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and shortens long phone-generated names
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = filenameJunk.ReplaceAllString(base, "")
	base = strings.TrimSpace(filenameSpaces.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "document"
	}
	return base + ext
}

func (s *Service) isPaid(ctx context.Context, userID string) (bool, error) {
	if userID == "" || s.plans == nil {
		return false, nil
	}
	paid, err := s.plans.IsPaid(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("checking plan: %w", err)
	}
	return paid, nil
}

// Scan extracts a warranty from doc without saving it. Unauthenticated callers get the
// minimal view.
func (s *Service) Scan(ctx context.Context, caller Caller, doc scanning.Document, reveal bool) (*ScanResult, error) {
	if err := CheckUpload(doc, s.policy); err != nil {
		return nil, err
	}

	paid := false
	if caller.Authenticated {
		var err error
		if paid, err = s.isPaid(ctx, caller.UserID); err != nil {
			return nil, err
		}
	}

	res, err := s.processor.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("processing document: %w", err)
	}

	view := access.Project(res.Record, res.Assessment, access.Entitlements{
		Authenticated: caller.Authenticated,
		Paid:          paid,
		Revealed:      reveal,
	})
	return &ScanResult{
		Filename:   doc.Name,
		Provenance: res.Text.Provenance,
		Confidence: res.Text.Confidence,
		View:       view,
	}, nil
}

// account loads a user's account, seeding a new one when none exists
func (s *Service) account(ctx context.Context, userID string) (*Account, error) {
	acct, err := s.db.GetAccount(ctx, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return &Account{
		UserID:    userID,
		Credits:   StartingCredits,
		UpdatedAt: s.timeSource.Now(),
	}, nil
}

// canUpload reports whether acct has an upload left
func canUpload(acct *Account, paid bool) bool {
	return paid || !acct.FreeUploadUsed || acct.Credits > 0
}

// debit spends the free upload first, then one credit
func debit(acct *Account) {
	if !acct.FreeUploadUsed {
		acct.FreeUploadUsed = true
		return
	}
	acct.Credits--
}

// Upload extracts a warranty from doc and saves it for the caller. The first upload is free,
// later ones cost a credit; paid users upload without limit and get the original archived.
func (s *Service) Upload(ctx context.Context, caller Caller, doc scanning.Document) (*WarrantyView, error) {
	if !caller.Authenticated || caller.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if err := CheckUpload(doc, s.policy); err != nil {
		return nil, err
	}

	paid, err := s.isPaid(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	acct, err := s.account(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !canUpload(acct, paid) {
		return nil, ErrNoCredits
	}

	res, err := s.processor.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("processing document: %w", err)
	}

	now := s.timeSource.Now()
	w := &Warranty{
		ID:          s.idGenerator.Generate(),
		UserID:      caller.UserID,
		Record:      res.Record,
		Filename:    doc.Name,
		ContentType: doc.MediaType,
		Provenance:  res.Text.Provenance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if paid && s.storage != nil {
		path, err := s.storage.Save(ctx, fmt.Sprintf("%s/%s_%s", caller.UserID, w.ID, sanitizeFilename(doc.Name)), doc.Data, doc.MediaType)
		if err != nil {
			// the record is still useful without its backup
			slog.Error("Failed to archive document", "user_id", caller.UserID, "filename", doc.Name, "error", err)
		} else {
			w.ArchivePath = path
		}
	}

	if err := s.charge(ctx, caller.UserID, paid, now, func() error {
		return s.db.SaveWarranty(ctx, w)
	}); err != nil {
		if w.ArchivePath != "" {
			if derr := s.storage.Delete(ctx, w.ArchivePath); derr != nil {
				slog.Warn("Failed to delete archived document", "path", w.ArchivePath, "error", derr)
			}
		}
		return nil, err
	}

	slog.Info("Warranty saved", "user_id", caller.UserID, "warranty_id", w.ID, "provenance", w.Provenance, "fallbacks", len(w.Record.Fallbacks))
	return s.view(w, res.Assessment, access.Entitlements{Authenticated: true, Paid: paid}), nil
}

// charge debits one upload and runs save. The balance is restored if save fails.
func (s *Service) charge(ctx context.Context, userID string, paid bool, now time.Time, save func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if paid {
		if err := save(); err != nil {
			return fmt.Errorf("saving warranty: %w", err)
		}
		return nil
	}

	acct, err := s.account(ctx, userID)
	if err != nil {
		return err
	}
	if !canUpload(acct, false) {
		return ErrNoCredits
	}
	before := *acct

	debit(acct)
	acct.UpdatedAt = now
	if err := s.db.SaveAccount(ctx, acct); err != nil {
		return fmt.Errorf("saving account: %w", err)
	}

	if err := save(); err != nil {
		if rerr := s.db.SaveAccount(ctx, &before); rerr != nil {
			slog.Error("Failed to refund upload", "user_id", userID, "error", rerr)
		}
		return fmt.Errorf("saving warranty: %w", err)
	}
	return nil
}

func (s *Service) view(w *Warranty, a lifecycle.Assessment, ent access.Entitlements) *WarrantyView {
	return &WarrantyView{
		ID:         w.ID,
		Filename:   w.Filename,
		Provenance: w.Provenance,
		HasArchive: w.ArchivePath != "",
		CreatedAt:  w.CreatedAt,
		View:       access.Project(w.Record, a, ent),
	}
}

func (s *Service) classify(w *Warranty) lifecycle.Assessment {
	return s.processor.Classify(w.Record)
}

// owned loads a warranty belonging to the caller. Other users' warranties are reported as
// not found.
func (s *Service) owned(ctx context.Context, caller Caller, id string) (*Warranty, error) {
	if !caller.Authenticated || caller.UserID == "" {
		return nil, ErrUnauthenticated
	}
	w, err := s.db.GetWarranty(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting warranty: %w", err)
	}
	if w.UserID != caller.UserID {
		return nil, fmt.Errorf("getting warranty %s: %w", id, ErrNotFound)
	}
	return w, nil
}

// Get returns a stored warranty as the caller may see it
func (s *Service) Get(ctx context.Context, caller Caller, id string, reveal bool) (*WarrantyView, error) {
	w, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	paid, err := s.isPaid(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return s.view(w, s.classify(w), access.Entitlements{Authenticated: true, Paid: paid, Revealed: reveal}), nil
}

// Reveal asks for the concealed fields of a warranty. Unpaid callers get the minimal view
// with an upgrade denial.
func (s *Service) Reveal(ctx context.Context, caller Caller, id string) (*WarrantyView, error) {
	return s.Get(ctx, caller, id, true)
}

// List returns the caller's warranties, newest first. Status filters need the paid tier since
// status is a concealed field.
func (s *Service) List(ctx context.Context, caller Caller, filter lifecycle.Filter) ([]*WarrantyView, error) {
	if !caller.Authenticated || caller.UserID == "" {
		return nil, ErrUnauthenticated
	}
	paid, err := s.isPaid(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		filter = lifecycle.FilterAll
	}
	if filter != lifecycle.FilterAll && !paid {
		return nil, ErrUpgradeRequired
	}

	warranties, err := s.db.ListWarranties(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing warranties: %w", err)
	}
	sort.SliceStable(warranties, func(i, j int) bool {
		return warranties[i].CreatedAt.After(warranties[j].CreatedAt)
	})

	ent := access.Entitlements{Authenticated: true, Paid: paid}
	views := make([]*WarrantyView, 0, len(warranties))
	for _, w := range warranties {
		a := s.classify(w)
		if !filter.Matches(a.Status) {
			continue
		}
		views = append(views, s.view(w, a, ent))
	}
	return views, nil
}

// Delete removes a warranty and its archived file
func (s *Service) Delete(ctx context.Context, caller Caller, id string) error {
	w, err := s.owned(ctx, caller, id)
	if err != nil {
		return err
	}

	if w.ArchivePath != "" && s.storage != nil {
		if err := s.storage.Delete(ctx, w.ArchivePath); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete archived document", "path", w.ArchivePath, "error", err)
		}
	}

	if err := s.db.DeleteWarranty(ctx, id); err != nil {
		return fmt.Errorf("deleting warranty: %w", err)
	}
	return nil
}

// GetFile returns the archived original document. Archiving is a paid feature.
func (s *Service) GetFile(ctx context.Context, caller Caller, id string) ([]byte, string, error) {
	w, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, "", err
	}
	paid, err := s.isPaid(ctx, caller.UserID)
	if err != nil {
		return nil, "", err
	}
	if !paid {
		return nil, "", ErrUpgradeRequired
	}
	if w.ArchivePath == "" || s.storage == nil {
		return nil, "", fmt.Errorf("no archived file for %s: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(ctx, w.ArchivePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting archived file: %w", err)
	}
	return data, w.ContentType, nil
}

// Account returns the caller's plan and upload allowance
func (s *Service) Account(ctx context.Context, caller Caller) (*AccountStatus, error) {
	if !caller.Authenticated || caller.UserID == "" {
		return nil, ErrUnauthenticated
	}
	paid, err := s.isPaid(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	acct, err := s.account(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	plan := "free"
	if paid {
		plan = "premium"
	}
	return &AccountStatus{
		Account:        *acct,
		Plan:           plan,
		CanUpload:      canUpload(acct, paid),
		FreeUploadLeft: !acct.FreeUploadUsed,
	}, nil
}

// SweepReminders notifies owners of warranties that have entered the expiring-soon window
// since the last sweep. It returns how many reminders went out.
func (s *Service) SweepReminders(ctx context.Context) (int, error) {
	warranties, err := s.db.ListWarranties(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("listing warranties: %w", err)
	}

	sent := 0
	for _, w := range warranties {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		a := s.classify(w)
		if !lifecycle.EnteredExpiringSoon(w.RemindedAt != nil, a) {
			continue
		}
		if err := s.notifier.NotifyExpiring(ctx, w, a); err != nil {
			slog.Error("Failed to send reminder", "warranty_id", w.ID, "user_id", w.UserID, "error", err)
			continue
		}
		if err := s.db.MarkReminded(ctx, w.ID, s.timeSource.Now()); err != nil {
			if errors.Is(err, ErrNotFound) {
				slog.Info("Warranty deleted during reminder sweep", "warranty_id", w.ID)
				continue
			}
			return sent, fmt.Errorf("recording reminder for %s: %w", w.ID, err)
		}
		sent++
	}
	if sent > 0 {
		slog.Info("Reminders sent", "count", sent)
	}
	return sent, nil
}
