package store

import (
	"testing"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB builds statements without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  "host=localhost user=relay dbname=relay sslmode=disable",
		PreferSimpleProtocol: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestGorm_RecentMessagesQuery(t *testing.T) {
	g := NewGorm(dryRunDB(t))

	sql := g.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var recs []messageRecord
		return g.recentMessages(tx, "AB12", 20).Find(&recs)
	})
	assert.Contains(t, sql, `FROM "room_messages"`)
	assert.Contains(t, sql, `room_code = 'AB12'`)
	assert.Contains(t, sql, `ORDER BY id DESC`)
	assert.Contains(t, sql, `LIMIT 20`)
}

func TestGorm_SaveRoomIgnoresConflict(t *testing.T) {
	g := NewGorm(dryRunDB(t))

	sql := g.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return g.insertRoom(tx, domain.RoomMeta{Code: "AB12", CreatedBy: "tok"})
	})
	assert.Contains(t, sql, `INSERT INTO "rooms"`)
	assert.Contains(t, sql, `ON CONFLICT ("code") DO NOTHING`)
}

func TestGorm_TableNames(t *testing.T) {
	assert.Equal(t, "rooms", roomRecord{}.TableName())
	assert.Equal(t, "room_members", memberRecord{}.TableName())
	assert.Equal(t, "room_messages", messageRecord{}.TableName())
}
