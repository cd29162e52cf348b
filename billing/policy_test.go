package billing

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"calliope/db"
	"calliope/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := gorm.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	// uma conexão só: evita SQLITE_BUSY nos testes com escrita concorrente
	conn.DB().SetMaxOpenConns(1)
	db.Migrate(conn)
	return conn
}

func TestEnsureSubscriptionCreatesImplicitTrial(t *testing.T) {
	conn := openTestDB(t)
	p := NewPolicy(14, 50)

	sub, err := p.EnsureSubscription(conn, 1)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if sub.Tier != models.SUBSCRIPTION_TIER_TRIAL {
		t.Fatalf("tier = %s, esperava trial", sub.Tier)
	}
	if sub.DialogsLimit != 50 {
		t.Fatalf("limit = %d, esperava 50", sub.DialogsLimit)
	}
	if sub.TrialEnd == nil || sub.TrialStart == nil {
		t.Fatal("trial sem janela de datas")
	}
	if got := sub.TrialEnd.Sub(*sub.TrialStart); got != 14*24*time.Hour {
		t.Fatalf("janela do trial = %s", got)
	}

	// segunda chamada não duplica
	again, err := p.EnsureSubscription(conn, 1)
	if err != nil {
		t.Fatalf("ensure 2: %v", err)
	}
	if again.ID != sub.ID {
		t.Fatalf("assinatura duplicada: %d != %d", again.ID, sub.ID)
	}
}

func TestCanStartDeniesAtLimit(t *testing.T) {
	conn := openTestDB(t)
	p := NewPolicy(14, 2)

	if err := p.CanStart(conn, 7); err != nil {
		t.Fatalf("primeiro CanStart: %v", err)
	}
	if err := p.RecordUsage(conn, 7); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := p.CanStart(conn, 7); err != nil {
		t.Fatalf("CanStart abaixo do limite: %v", err)
	}
	if err := p.RecordUsage(conn, 7); err != nil {
		t.Fatalf("RecordUsage 2: %v", err)
	}

	err := p.CanStart(conn, 7)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("esperava ErrQuotaExceeded, veio %v", err)
	}
}

func TestCanStartReadOnly(t *testing.T) {
	conn := openTestDB(t)
	p := NewPolicy(14, 50)

	if _, err := p.EnsureSubscription(conn, 3); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := conn.Model(&models.Subscription{}).
		Where("user_id = ?", 3).
		Update("is_read_only", true).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := p.CanStart(conn, 3); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("esperava ErrReadOnly, veio %v", err)
	}
}

func TestCanStartTrialExpiry(t *testing.T) {
	conn := openTestDB(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p := NewPolicy(14, 50)
	p.Now = func() time.Time { return base }

	if err := p.CanStart(conn, 9); err != nil {
		t.Fatalf("dentro do trial: %v", err)
	}

	// avança o relógio para depois do fim do trial
	p.Now = func() time.Time { return base.AddDate(0, 0, 15) }
	if err := p.CanStart(conn, 9); !errors.Is(err, ErrTrialExpired) {
		t.Fatalf("esperava ErrTrialExpired, veio %v", err)
	}

	var sub models.Subscription
	if err := conn.Where("user_id = ?", 9).First(&sub).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if sub.Status != models.SUBSCRIPTION_STATUS_EXPIRED || !sub.IsReadOnly {
		t.Fatalf("trial vencido não foi marcado: status=%s read_only=%v", sub.Status, sub.IsReadOnly)
	}
}

func TestRecordUsageConcurrent(t *testing.T) {
	conn := openTestDB(t)
	p := NewPolicy(14, 1000)

	if _, err := p.EnsureSubscription(conn, 5); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.RecordUsage(conn, 5)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
	}

	var sub models.Subscription
	if err := conn.Where("user_id = ?", 5).First(&sub).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if sub.DialogsUsed != n {
		t.Fatalf("dialogs_used = %d, esperava %d (update perdido)", sub.DialogsUsed, n)
	}
}

func TestRemaining(t *testing.T) {
	conn := openTestDB(t)
	p := NewPolicy(14, 50)

	remaining, err := p.Remaining(conn, 11)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining != 50 {
		t.Fatalf("remaining = %d, esperava 50", remaining)
	}

	if err := p.RecordUsage(conn, 11); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	remaining, err = p.Remaining(conn, 11)
	if err != nil {
		t.Fatalf("remaining 2: %v", err)
	}
	if remaining != 49 {
		t.Fatalf("remaining = %d, esperava 49", remaining)
	}

	// limite <= 0 significa ilimitado
	if err := conn.Model(&models.Subscription{}).
		Where("user_id = ?", 11).
		Update("dialogs_limit", 0).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	remaining, err = p.Remaining(conn, 11)
	if err != nil {
		t.Fatalf("remaining 3: %v", err)
	}
	if remaining != -1 {
		t.Fatalf("remaining = %d, esperava -1", remaining)
	}
}

func TestActivateSubscription(t *testing.T) {
	conn := openTestDB(t)
	p := NewPolicy(14, 50)

	if err := p.ActivateSubscription(conn, 13, models.SUBSCRIPTION_TIER_PRO); err != nil {
		t.Fatalf("activate: %v", err)
	}

	var sub models.Subscription
	if err := conn.Where("user_id = ?", 13).First(&sub).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if sub.Tier != models.SUBSCRIPTION_TIER_PRO || sub.Status != models.SUBSCRIPTION_STATUS_ACTIVE {
		t.Fatalf("assinatura não ativou: tier=%s status=%s", sub.Tier, sub.Status)
	}
	if sub.DialogsLimit != 300 {
		t.Fatalf("limit = %d, esperava 300", sub.DialogsLimit)
	}

	var count int
	if err := conn.Model(&models.AnalyticsEvent{}).
		Where("event_type = ? AND user_id = ?", models.EVENT_SUBSCRIPTION_STARTED, 13).
		Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("eventos subscription_started = %d, esperava 1", count)
	}

	if err := p.ActivateSubscription(conn, 13, "platinum"); err == nil {
		t.Fatal("tier inexistente deveria falhar")
	}
}
