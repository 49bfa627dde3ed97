package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
	"github.com/Miglio04/OREKA-BACKEND/internal/store"
)

// Store is the in-memory repository used by tests and by deployments
// running without DATABASE_URL.
type Store struct {
	mu sync.RWMutex

	filesByID map[string]domain.ProcessedFile

	posLines           []domain.POSLine
	salesInvoices      []domain.SalesInvoice
	purchaseInvoices   []domain.PurchaseInvoice
	laborCosts         []domain.LaborCost
	fixedCosts         []domain.FixedCost
	inventorySnapshots []domain.InventorySnapshot
	capitalSnapshots   []domain.CapitalSnapshot

	priceList       map[string]decimal.Decimal
	reorderLevels   map[string]int
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		filesByID:       make(map[string]domain.ProcessedFile),
		priceList:       make(map[string]decimal.Decimal),
		reorderLevels:   make(map[string]int),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store pre-populated with dev user accounts so the API
// is usable immediately after startup.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	return s
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_ANALYST_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	analystPwd := envOr("SEED_ANALYST_PASSWORD", "analyst123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_ANALYST_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_ANALYST_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"analyst", analystPwd, "analyst"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) SaveProcessedFile(_ context.Context, file domain.ProcessedFile) (*domain.ProcessedFile, error) {
	if file.FileName == "" || file.FileType == "" {
		return nil, store.ErrInvalidFile
	}
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.ProcessedAt.IsZero() {
		file.ProcessedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.filesByID[file.ID] = file
	s.mu.Unlock()

	saved := file
	return &saved, nil
}

func (s *Store) GetProcessedFile(_ context.Context, id string) (*domain.ProcessedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.filesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := file
	return &found, nil
}

func (s *Store) ListProcessedFiles(_ context.Context, limit int) ([]domain.ProcessedFile, error) {
	s.mu.RLock()
	files := make([]domain.ProcessedFile, 0, len(s.filesByID))
	for _, file := range s.filesByID {
		files = append(files, file)
	}
	s.mu.RUnlock()

	// Newest first.
	sort.Slice(files, func(i, j int) bool {
		return files[i].ProcessedAt.After(files[j].ProcessedAt)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (s *Store) AppendPOSLines(_ context.Context, _ string, lines []domain.POSLine) error {
	s.mu.Lock()
	s.posLines = append(s.posLines, lines...)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListPOSLines(_ context.Context) ([]domain.POSLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.POSLine, len(s.posLines))
	copy(out, s.posLines)
	return out, nil
}

func (s *Store) AppendSalesInvoices(_ context.Context, _ string, invoices []domain.SalesInvoice) error {
	s.mu.Lock()
	s.salesInvoices = append(s.salesInvoices, invoices...)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListSalesInvoices(_ context.Context) ([]domain.SalesInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SalesInvoice, len(s.salesInvoices))
	copy(out, s.salesInvoices)
	return out, nil
}

func (s *Store) AppendPurchaseInvoices(_ context.Context, _ string, invoices []domain.PurchaseInvoice) error {
	s.mu.Lock()
	s.purchaseInvoices = append(s.purchaseInvoices, invoices...)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListPurchaseInvoices(_ context.Context) ([]domain.PurchaseInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PurchaseInvoice, len(s.purchaseInvoices))
	copy(out, s.purchaseInvoices)
	return out, nil
}

func (s *Store) AppendLaborCosts(_ context.Context, _ string, costs []domain.LaborCost) error {
	s.mu.Lock()
	s.laborCosts = append(s.laborCosts, costs...)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListLaborCosts(_ context.Context) ([]domain.LaborCost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LaborCost, len(s.laborCosts))
	copy(out, s.laborCosts)
	return out, nil
}

func (s *Store) AppendFixedCosts(_ context.Context, _ string, costs []domain.FixedCost) error {
	s.mu.Lock()
	s.fixedCosts = append(s.fixedCosts, costs...)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListFixedCosts(_ context.Context) ([]domain.FixedCost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FixedCost, len(s.fixedCosts))
	copy(out, s.fixedCosts)
	return out, nil
}

func (s *Store) AppendInventorySnapshots(_ context.Context, _ string, snapshots []domain.InventorySnapshot) error {
	s.mu.Lock()
	s.inventorySnapshots = append(s.inventorySnapshots, snapshots...)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListInventorySnapshots(_ context.Context) ([]domain.InventorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.InventorySnapshot, len(s.inventorySnapshots))
	copy(out, s.inventorySnapshots)
	return out, nil
}

func (s *Store) AppendCapitalSnapshots(_ context.Context, _ string, snapshots []domain.CapitalSnapshot) error {
	s.mu.Lock()
	s.capitalSnapshots = append(s.capitalSnapshots, snapshots...)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListCapitalSnapshots(_ context.Context) ([]domain.CapitalSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CapitalSnapshot, len(s.capitalSnapshots))
	copy(out, s.capitalSnapshots)
	return out, nil
}

func (s *Store) UpsertPriceList(_ context.Context, items []domain.PriceListItem) error {
	s.mu.Lock()
	for _, item := range items {
		s.priceList[item.ItemName] = item.TheoreticalPrice
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) GetPriceList(_ context.Context) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(s.priceList))
	for name, price := range s.priceList {
		out[name] = price
	}
	return out, nil
}

func (s *Store) UpsertReorderLevels(_ context.Context, levels []domain.ReorderLevel) error {
	s.mu.Lock()
	for _, level := range levels {
		s.reorderLevels[level.ItemName] = level.ReorderLevel
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) GetReorderLevels(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.reorderLevels))
	for name, level := range s.reorderLevels {
		out[name] = level
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidFile
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
