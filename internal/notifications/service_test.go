package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  restaurant_id TEXT,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT,
  payload TEXT,
  read_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type stubPublisher struct {
	kinds    []string
	payloads [][]byte
	err      error
}

func (p *stubPublisher) Publish(_ context.Context, kind string, payload []byte) error {
	p.kinds = append(p.kinds, kind)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func newNotificationsService(t *testing.T, publisher EventPublisher) (Service, *gorm.DB) {
	t.Helper()

	db := setupNotificationsTestDB(t)
	svc, err := NewService(NewRepository(db), publisher, logger.New(logger.Options{}))
	require.NoError(t, err)
	return svc, db
}

func TestNotifyPersistsRowAndPublishes(t *testing.T) {
	publisher := &stubPublisher{}
	svc, db := newNotificationsService(t, publisher)
	ctx := context.Background()

	userID := uuid.New()
	svc.Notify(ctx, Event{
		UserID: &userID,
		Kind:   enums.NotificationKindGiftReceived,
		Title:  "You received a gift",
	})

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.Len(t, publisher.kinds, 1)
	assert.Equal(t, string(enums.NotificationKindGiftReceived), publisher.kinds[0])
}

func TestNotifySwallowsPublishFailure(t *testing.T) {
	publisher := &stubPublisher{err: errors.New("bus down")}
	svc, db := newNotificationsService(t, publisher)
	ctx := context.Background()

	userID := uuid.New()
	svc.Notify(ctx, Event{
		UserID: &userID,
		Kind:   enums.NotificationKindBalanceChanged,
		Title:  "Balance updated",
	})

	// The durable row must survive a failed publish.
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNotifyDropsInvalidKind(t *testing.T) {
	publisher := &stubPublisher{}
	svc, db := newNotificationsService(t, publisher)

	svc.Notify(context.Background(), Event{Kind: enums.NotificationKind("junk")})

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, publisher.kinds)
}

func TestListAndMarkRead(t *testing.T) {
	svc, _ := newNotificationsService(t, nil)
	ctx := context.Background()

	userID := uuid.New()
	svc.Notify(ctx, Event{UserID: &userID, Kind: enums.NotificationKindBalanceChanged, Title: "one"})
	svc.Notify(ctx, Event{UserID: &userID, Kind: enums.NotificationKindGiftReceived, Title: "two"})

	rows, err := svc.List(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].ReadAt)

	require.NoError(t, svc.MarkRead(ctx, rows[0].ID, userID))

	rows, err = svc.List(ctx, userID, 10)
	require.NoError(t, err)
	var read int
	for _, row := range rows {
		if row.ReadAt != nil {
			read++
		}
	}
	assert.Equal(t, 1, read)

	err = svc.MarkRead(ctx, uuid.New(), userID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
