package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
	"github.com/Miglio04/OREKA-BACKEND/internal/store"
)

func TestSaveProcessedFileAssignsIDAndTimestamp(t *testing.T) {
	s := New()

	saved, err := s.SaveProcessedFile(context.Background(), domain.ProcessedFile{
		FileName: "pos.csv",
		FileType: domain.FileTypeCSV,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected generated id")
	}
	if saved.ProcessedAt.IsZero() {
		t.Fatalf("expected processed_at to be set")
	}

	fetched, err := s.GetProcessedFile(context.Background(), saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.FileName != "pos.csv" {
		t.Fatalf("unexpected file %+v", fetched)
	}
}

func TestSaveProcessedFileRejectsIncomplete(t *testing.T) {
	s := New()
	if _, err := s.SaveProcessedFile(context.Background(), domain.ProcessedFile{FileType: domain.FileTypeCSV}); !errors.Is(err, store.ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
}

func TestGetProcessedFileNotFound(t *testing.T) {
	s := New()
	if _, err := s.GetProcessedFile(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProcessedFilesNewestFirstWithLimit(t *testing.T) {
	s := New()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		_, err := s.SaveProcessedFile(context.Background(), domain.ProcessedFile{
			ID:          fmt.Sprintf("f-%d", i),
			FileName:    fmt.Sprintf("file-%d.csv", i),
			FileType:    domain.FileTypeCSV,
			ProcessedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	files, err := s.ListProcessedFiles(context.Background(), 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	if files[0].ID != "f-4" || files[2].ID != "f-2" {
		t.Fatalf("expected newest first, got %s..%s", files[0].ID, files[2].ID)
	}
}

func TestListCopiesAreIsolated(t *testing.T) {
	s := New()
	line, err := domain.NewPOSLine(time.Now(), domain.ItemTypeFood, "Soup", 1,
		decimal.RequireFromString("4.50"), decimal.RequireFromString("4.50"),
		domain.PaymentCash, domain.AreaRestaurant, "R-9")
	if err != nil {
		t.Fatalf("build line: %v", err)
	}
	if err := s.AppendPOSLines(context.Background(), "f-1", []domain.POSLine{line}); err != nil {
		t.Fatalf("append: %v", err)
	}

	first, _ := s.ListPOSLines(context.Background())
	first[0].ItemName = "tampered"

	second, _ := s.ListPOSLines(context.Background())
	if second[0].ItemName != "Soup" {
		t.Fatalf("expected stored line to be unaffected, got %q", second[0].ItemName)
	}
}

func TestUpsertPriceListOverwrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.UpsertPriceList(ctx, []domain.PriceListItem{{ItemName: "Soup", TheoreticalPrice: decimal.RequireFromString("4.50")}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertPriceList(ctx, []domain.PriceListItem{{ItemName: "Soup", TheoreticalPrice: decimal.RequireFromString("5.00")}}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	prices, err := s.GetPriceList(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !prices["Soup"].Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("expected overwritten price, got %s", prices["Soup"])
	}
}

func TestUserLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.CreateUser(ctx, domain.UserAccount{
		Username:  "Admin ",
		Password:  "hash",
		Role:      "admin",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := s.UpdateUserPassword(ctx, "admin", "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if err := s.UpdateUserPassword(ctx, "ghost", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].Password != "new-hash" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestNewSeededProvidesLoginableAccounts(t *testing.T) {
	s := NewSeeded()
	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	roles := map[string]bool{}
	for _, user := range users {
		roles[user.Role] = true
		if user.Password == "" || user.Password == "admin123" {
			t.Fatalf("expected hashed seed password for %s", user.Username)
		}
	}
	if !roles["admin"] || !roles["analyst"] {
		t.Fatalf("expected admin and analyst seeds, got %+v", roles)
	}
}
