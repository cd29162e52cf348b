package analytics

import (
	"path/filepath"
	"testing"
	"time"

	dbpkg "calliope/db"
	"calliope/models"

	"github.com/google/uuid"
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
	dbpkg.Migrate(conn)
	return conn
}

func track(t *testing.T, conn *gorm.DB, eventType string, userID int64, metadata map[string]any) {
	t.Helper()
	if err := Track(conn, eventType, userID, metadata, ""); err != nil {
		t.Fatalf("track %s: %v", eventType, err)
	}
}

func createLead(t *testing.T, conn *gorm.DB, userID int64, score int) {
	t.Helper()
	lead := models.Lead{
		ID:        uuid.NewString(),
		Source:    models.LEAD_SOURCE_SITE,
		ScriptID:  "s1",
		LeadScore: score,
		Status:    models.LEAD_STATUS_NEW,
		UserID:    userID,
	}
	if err := conn.Create(&lead).Error; err != nil {
		t.Fatalf("create lead: %v", err)
	}
}

func TestUserMetricsEmpty(t *testing.T) {
	conn := openTestDB(t)

	m, err := GetUserMetrics(conn, 1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.DialogsToday != 0 || m.LeadsCreated != 0 {
		t.Fatalf("m = %+v", m)
	}
	// denominador zero: taxa fica 0, nunca divide por zero
	if m.ConversionRate != 0 {
		t.Fatalf("conversion = %f, esperava 0", m.ConversionRate)
	}
	if m.AvgLeadScore != 0 {
		t.Fatalf("avg score = %f, esperava 0", m.AvgLeadScore)
	}
}

func TestUserMetricsCountsAndConversion(t *testing.T) {
	conn := openTestDB(t)

	track(t, conn, models.EVENT_DIALOG_COMPLETED, 1, nil)
	track(t, conn, models.EVENT_DIALOG_COMPLETED, 1, nil)
	track(t, conn, models.EVENT_DIALOG_COMPLETED, 1, nil)
	track(t, conn, models.EVENT_DIALOG_COMPLETED, 1, nil)
	track(t, conn, models.EVENT_LEAD_CREATED, 1, nil)
	track(t, conn, models.EVENT_LEAD_CREATED, 1, nil)
	track(t, conn, models.EVENT_LEAD_SCORED, 1, map[string]any{"score": 85, "bucket": "hot"})
	track(t, conn, models.EVENT_LEAD_SCORED, 1, map[string]any{"score": 20, "bucket": "new"})
	track(t, conn, models.EVENT_LEAD_BOOKED, 1, nil)

	// eventos de outro usuário não vazam
	track(t, conn, models.EVENT_DIALOG_COMPLETED, 2, nil)
	track(t, conn, models.EVENT_LEAD_SCORED, 2, map[string]any{"score": 90, "bucket": "hot"})

	m, err := GetUserMetrics(conn, 1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.DialogsToday != 4 || m.DialogsWeek != 4 {
		t.Fatalf("dialogs = %d/%d", m.DialogsToday, m.DialogsWeek)
	}
	if m.LeadsCreated != 2 {
		t.Fatalf("leads = %d", m.LeadsCreated)
	}
	if m.HotLeads != 1 {
		t.Fatalf("hot = %d", m.HotLeads)
	}
	if m.MeetingsScheduled != 1 {
		t.Fatalf("meetings = %d", m.MeetingsScheduled)
	}
	if m.ConversionRate != 0.5 {
		t.Fatalf("conversion = %f, esperava 0.5", m.ConversionRate)
	}
}

func TestUserMetricsAvgScore(t *testing.T) {
	conn := openTestDB(t)

	createLead(t, conn, 3, 80)
	createLead(t, conn, 3, 40)
	createLead(t, conn, 99, 100) // outro usuário

	m, err := GetUserMetrics(conn, 3)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.AvgLeadScore != 60 {
		t.Fatalf("avg score = %f, esperava 60", m.AvgLeadScore)
	}
}

func TestGlobalMetricsEmpty(t *testing.T) {
	conn := openTestDB(t)

	g, err := GetGlobalMetrics(conn)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if g.TotalUsers != 0 || g.ActiveUsers != 0 || g.AvgConversionRate != 0 {
		t.Fatalf("g = %+v", g)
	}
}

func TestGlobalMetricsExcludesZeroConversionUsers(t *testing.T) {
	conn := openTestDB(t)

	// usuário 1: 2 diálogos, 1 lead -> taxa 0.5
	track(t, conn, models.EVENT_DIALOG_COMPLETED, 1, nil)
	track(t, conn, models.EVENT_DIALOG_COMPLETED, 1, nil)
	track(t, conn, models.EVENT_LEAD_CREATED, 1, nil)

	// usuário 2: 4 diálogos, 1 lead -> taxa 0.25
	for i := 0; i < 4; i++ {
		track(t, conn, models.EVENT_DIALOG_COMPLETED, 2, nil)
	}
	track(t, conn, models.EVENT_LEAD_CREATED, 2, nil)

	// usuário 3: diálogos sem lead -> taxa 0, fica fora da média
	track(t, conn, models.EVENT_DIALOG_COMPLETED, 3, nil)

	g, err := GetGlobalMetrics(conn)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if g.ActiveUsers != 3 {
		t.Fatalf("active = %d, esperava 3", g.ActiveUsers)
	}
	if g.DialogsToday != 7 {
		t.Fatalf("dialogs today = %d, esperava 7", g.DialogsToday)
	}
	if g.AvgConversionRate != 0.375 {
		t.Fatalf("avg conversion = %f, esperava 0.375 (média de 0.5 e 0.25)", g.AvgConversionRate)
	}
}

func TestLeadsPerDayFillsGaps(t *testing.T) {
	conn := openTestDB(t)

	now := time.Now().UTC()
	createLead(t, conn, 1, 50)
	createLead(t, conn, 1, 70)

	from := now.AddDate(0, 0, -2)
	series, err := LeadsPerDay(conn, 1, from, now)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("len = %d, esperava 3 dias", len(series))
	}
	if series[0].Count != 0 || series[1].Count != 0 {
		t.Fatalf("dias sem lead deveriam ser 0: %+v", series)
	}
	if series[2].Day != now.Format("2006-01-02") || series[2].Count != 2 {
		t.Fatalf("hoje = %+v", series[2])
	}

	var total int64
	for _, p := range series {
		total += p.Count
	}
	if total != 2 {
		t.Fatalf("total = %d", total)
	}
}

func TestTrackAppendsEvent(t *testing.T) {
	conn := openTestDB(t)

	if err := Track(conn, models.EVENT_LEAD_SCORED, 7,
		map[string]any{"score": 85, "bucket": "hot"}, "sess-1"); err != nil {
		t.Fatalf("track: %v", err)
	}

	var ev models.AnalyticsEvent
	if err := conn.First(&ev).Error; err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.EventType != models.EVENT_LEAD_SCORED || ev.UserID != 7 || ev.SessionID != "sess-1" {
		t.Fatalf("ev = %+v", ev)
	}

	meta := ev.MetadataMap()
	if meta["bucket"] != "hot" {
		t.Fatalf("meta = %+v", meta)
	}
}
