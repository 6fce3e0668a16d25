package reportstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/pitchsim/config"
	"github.com/BaSui01/pitchsim/testutil"
	"github.com/BaSui01/pitchsim/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	store, err := New(db, nil)
	require.NoError(t, err)
	return store
}

func sampleReport(sessionID, personaID string, status types.RunStatus) *types.SimulationReport {
	return &types.SimulationReport{
		SessionID:           sessionID,
		CustomerPersonality: personaID,
		TotalTurns:          3,
		FinalStatus:         status,
		FinalSalesState:     types.StatePitch,
		AverageScore:        7.2,
		Turns: []types.Turn{
			{TurnNumber: 1, SalesMessage: "hi", CustomerMessage: "hello", SalesState: types.StateOpening},
			{TurnNumber: 2, SalesMessage: "pitch", CustomerMessage: "hmm", SalesState: types.StatePitch, CustomerObjection: true},
			{TurnNumber: 3, SalesMessage: "more", CustomerMessage: "ok", SalesState: types.StatePitch},
		},
		Strengths:       []string{"good"},
		Weaknesses:      []string{},
		Recommendations: []string{},
		StartedAt:       time.Now().UTC().Truncate(time.Second),
		FinishedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_SaveAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := testutil.TestContext(t)

	original := sampleReport("s1", "skeptical", types.RunCompleted)
	require.NoError(t, store.Save(ctx, original))

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, original.SessionID, loaded.SessionID)
	assert.Equal(t, original.FinalStatus, loaded.FinalStatus)
	assert.Equal(t, original.AverageScore, loaded.AverageScore)
	require.Len(t, loaded.Turns, 3)
	assert.True(t, loaded.Turns[1].CustomerObjection)
}

func TestStore_SaveUpsertsBySession(t *testing.T) {
	store := newTestStore(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, store.Save(ctx, sampleReport("s1", "busy", types.RunDeadlock)))

	updated := sampleReport("s1", "busy", types.RunCompleted)
	updated.AverageScore = 9.1
	require.NoError(t, store.Save(ctx, updated))

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, loaded.FinalStatus)
	assert.Equal(t, 9.1, loaded.AverageScore)

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, store.Save(ctx, sampleReport("s1", "busy", types.RunCompleted)))
	require.NoError(t, store.Save(ctx, sampleReport("s2", "busy", types.RunDeadlock)))
	require.NoError(t, store.Save(ctx, sampleReport("s3", "skeptical", types.RunCompleted)))

	byPersona, err := store.List(ctx, ListFilter{Persona: "busy"})
	require.NoError(t, err)
	assert.Len(t, byPersona, 2)

	byStatus, err := store.List(ctx, ListFilter{Status: types.RunCompleted})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	both, err := store.List(ctx, ListFilter{Persona: "busy", Status: types.RunDeadlock})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "s2", both[0].SessionID)

	limited, err := store.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, store.Save(ctx, sampleReport("s1", "busy", types.RunCompleted)))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "s1"), ErrNotFound)
}

func TestStore_SaveValidation(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Save(context.Background(), nil))
	assert.Error(t, store.Save(context.Background(), &types.SimulationReport{}))
}

type opRecord struct {
	op string
}

type captureRecorder struct{ ops []opRecord }

func (r *captureRecorder) RecordReportStoreOp(operation string, _ time.Duration) {
	r.ops = append(r.ops, opRecord{op: operation})
}

func TestStore_RecorderObservesOperations(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	rec := &captureRecorder{}
	store, err := New(db, nil, WithRecorder(rec))
	require.NoError(t, err)

	ctx := testutil.TestContext(t)
	require.NoError(t, store.Save(ctx, sampleReport("s1", "busy", types.RunCompleted)))
	_, err = store.Get(ctx, "s1")
	require.NoError(t, err)

	require.Len(t, rec.ops, 2)
	assert.Equal(t, "save", rec.ops[0].op)
	assert.Equal(t, "get", rec.ops[1].op)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, nil)
	assert.Error(t, err)
}

func TestStore_GetPropagatesDriverError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// 跳过 AutoMigrate,直接在损坏的连接上查询
	store := &Store{db: db}
	mock.ExpectQuery("SELECT .*").WillReturnError(assert.AnError)

	_, err = store.Get(context.Background(), "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
