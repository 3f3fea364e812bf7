package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/importer"
)

// ErrNoArchiver is returned by archive operations when no archiver is wired.
var ErrNoArchiver = errors.New("portfolio: backup archiver not configured")

const importNote = "Imported via bulk tool"

// ExportBackup renders the backup of id.
func (s *PortfolioService) ExportBackup(_ context.Context, id domain.AccountID) ([]byte, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return nil, err
	}
	return importer.ExportBackup(acct.Snapshot())
}

// ImportBackup replaces the account named by the backup (the active account
// when it names none) with the backup's contents and makes it active. The
// merge and the swap happen under the account lock and the ledger store copy
// is replaced on the next sync. On any error nothing changes.
func (s *PortfolioService) ImportBackup(ctx context.Context, raw []byte) (domain.AccountID, error) {
	b, err := importer.ParseBackup(raw)
	if err != nil {
		return "", err
	}
	id := b.ActiveAccount
	if id == "" {
		id = s.book.Active()
	}
	acct, err := s.book.Account(id)
	if err != nil {
		return "", errors.Join(domain.ErrMalformedImport, err)
	}

	next, err := acct.ReplaceWith(func(cur domain.AccountState) (domain.AccountState, error) {
		next := b.Apply(cur)
		next.ID = id
		if err := next.Validate(); err != nil {
			return domain.AccountState{}, errors.Join(domain.ErrMalformedImport, fmt.Errorf("portfolio: import %s: %w", id, err))
		}
		return next, nil
	})
	if err != nil {
		return "", err
	}

	if err := s.SwitchAccount(ctx, id); err != nil {
		return "", err
	}
	s.commit(ctx, acct, "backup.import", map[string]any{
		"positions": len(next.Positions),
		"journal":   len(next.Journal),
		"orders":    len(next.PendingOrders),
	})
	return id, nil
}

// PreviewPaste parses pasted brokerage text against id without changing
// anything.
func (s *PortfolioService) PreviewPaste(id domain.AccountID, text string) (importer.Preview, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return importer.Preview{}, err
	}
	return importer.ParsePaste(text, acct.Snapshot(), s.now()), nil
}

// CommitResult counts what CommitPaste applied.
type CommitResult struct {
	Executed int `json:"executed"`
	Placed   int `json:"placed"`
	Balances int `json:"balances"`
	Skipped  int `json:"skipped"`
}

// CommitPaste applies the selected items of a preview: executed trades are
// journaled, placed trades staged as orders and balances synced. Trades are
// selected by id and balances by symbol; a nil selection takes everything.
// Duplicates are always skipped. Item errors are joined and do not stop the
// remaining items.
func (s *PortfolioService) CommitPaste(ctx context.Context, id domain.AccountID, preview importer.Preview, selected []string) (CommitResult, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return CommitResult{}, err
	}
	if preview.Account != "" && preview.Account != id {
		return CommitResult{}, fmt.Errorf("portfolio: preview for %s committed to %s: %w", preview.Account, id, domain.ErrMalformedImport)
	}

	pick := func(key string) bool { return true }
	if selected != nil {
		set := make(map[string]bool, len(selected))
		for _, k := range selected {
			set[k] = true
		}
		pick = func(key string) bool { return set[key] }
	}

	var (
		res  CommitResult
		errs []error
	)
	for _, t := range preview.Trades {
		if !pick(t.ID) {
			continue
		}
		if t.Duplicate || acct.HasPendingOrder(t.ID) {
			res.Skipped++
			continue
		}
		switch t.Status {
		case importer.PasteExecuted:
			entryType := domain.EntryBuy
			if t.Type == domain.OrderSideSell {
				entryType = domain.EntrySell
			}
			r, err := acct.ExecuteTrade(domain.JournalEntry{
				ID:        t.ID,
				Timestamp: pasteTime(t.Date, s.now()),
				Type:      entryType,
				Symbol:    t.Symbol,
				Units:     domain.Float(t.Units),
				Price:     domain.Float(t.Price),
				Notes:     importNote,
			})
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if r.Duplicate {
				res.Skipped++
				continue
			}
			res.Executed++
		default:
			if _, err := acct.AddOrder(domain.PendingOrder{
				ID:     t.ID,
				Type:   t.Type,
				Symbol: t.Symbol,
				Units:  t.Units,
				Price:  t.Price,
				Status: domain.OrderStatusOpen,
				Date:   t.Date,
				Note:   importNote,
			}); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Placed++
		}
	}
	for _, b := range preview.Balances {
		if !pick(b.Symbol) {
			continue
		}
		if err := acct.SyncAssetBalance(b.Symbol, b.Units); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Balances++
	}

	if res.Executed+res.Placed+res.Balances > 0 {
		s.commit(ctx, acct, "paste.commit", map[string]any{
			"executed": res.Executed,
			"placed":   res.Placed,
			"balances": res.Balances,
			"skipped":  res.Skipped,
		})
	}
	s.logger.InfoContext(ctx, "portfolio: paste committed",
		slog.String("account", string(id)),
		slog.Int("executed", res.Executed),
		slog.Int("placed", res.Placed),
		slog.Int("balances", res.Balances),
		slog.Int("skipped", res.Skipped),
		slog.Int("errors", len(errs)),
	)
	return res, errors.Join(errs...)
}

func pasteTime(date string, now time.Time) time.Time {
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.UTC()
	}
	return now.UTC()
}

// ArchiveBackup seals the backup of id into cold storage and returns its
// path.
func (s *PortfolioService) ArchiveBackup(ctx context.Context, id domain.AccountID) (string, error) {
	if s.archiver == nil {
		return "", ErrNoArchiver
	}
	raw, err := s.ExportBackup(ctx, id)
	if err != nil {
		return "", err
	}
	return s.archiver.Archive(ctx, id, raw)
}

// ListBackups lists the archived backups of id.
func (s *PortfolioService) ListBackups(ctx context.Context, id domain.AccountID) ([]domain.BlobInfo, error) {
	if s.archiver == nil {
		return nil, ErrNoArchiver
	}
	return s.archiver.List(ctx, id)
}

// RestoreBackup imports an archived backup.
func (s *PortfolioService) RestoreBackup(ctx context.Context, path string) (domain.AccountID, error) {
	if s.archiver == nil {
		return "", ErrNoArchiver
	}
	raw, err := s.archiver.Restore(ctx, path)
	if err != nil {
		return "", err
	}
	return s.ImportBackup(ctx, raw)
}
