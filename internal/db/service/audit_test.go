package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/attribute-registry/internal/db/schema"
)

func TestAuditListNewestFirst(t *testing.T) {
	_, values := newTestEngine(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, "User", 7, "student_major", "History", SetOptions{})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = values.SetAttribute(ctx, "User", 7, "student_major", "Physics", SetOptions{})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = values.SetAttribute(ctx, "User", 7, "student_gpa", 3.5, SetOptions{})
	require.NoError(t, err)

	entries, err := values.audit.List("User", 7, AuditQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "student_gpa", entries[0].AttributeName)
	assert.Equal(t, schema.AuditActionUpdate, entries[1].Action)
	assert.Equal(t, schema.AuditActionCreate, entries[2].Action)

	entries, err = values.audit.List("User", 7, AuditQuery{AttributeName: "student_major"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = values.audit.List("User", 7, AuditQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Other entities' trails are separate.
	entries, err = values.audit.List("User", 8, AuditQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditRecordsActorAndReason(t *testing.T) {
	_, values := newTestEngine(t)
	ctx := context.Background()

	actor := int64(99)
	_, err := values.SetAttribute(ctx, "User", 7, "student_gpa", 3.5, SetOptions{
		ActorID: &actor,
		Reason:  "registrar correction",
	})
	require.NoError(t, err)

	entries, err := values.audit.List("User", 7, AuditQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, int64(99), *entries[0].ActorID)
	assert.Equal(t, "registrar correction", entries[0].Reason)
}

func TestAuditDegradesWhenTableAbsent(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, db.Migrator().DropTable(&schema.AttributeAuditEntry{}))
	assert.False(t, values.audit.TableExists())

	// Primary writes still succeed without the audit table.
	res, err := values.SetAttribute(ctx, "User", 7, "student_gpa", 3.5, SetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)

	_, err = values.DeleteAttribute(ctx, "User", 7, "student_gpa", DeleteOptions{})
	require.NoError(t, err)

	entries, err := values.audit.List("User", 7, AuditQuery{})
	require.NoError(t, err)
	assert.Nil(t, entries)
}
