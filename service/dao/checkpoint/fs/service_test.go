package fs

import (
	"context"
	"errors"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/dao"
)

func TestFsCheckpointRoundTrip(t *testing.T) {
	service, err := New(path.Join(t.TempDir(), "checkpoints"))
	require.NoError(t, err)
	ctx := context.Background()

	state := execution.NewState("zip_accrual", map[string]interface{}{"close_date": "2025-11-30"})
	state.Append(execution.NewMessage("system", "Extracted 2 pending invoices"))
	checkpoint := &execution.Checkpoint{ThreadID: "zip-nov-2025", Pipeline: "zip_accrual", Step: "extract_invoices", Next: "fetch_existing_bills", State: state}
	require.NoError(t, service.Save(ctx, checkpoint))

	loaded, err := service.Load(ctx, "zip-nov-2025")
	require.NoError(t, err)
	assert.Equal(t, "fetch_existing_bills", loaded.Next)
	require.Len(t, loaded.State.Messages, 1)
	assert.Equal(t, "Extracted 2 pending invoices", loaded.State.Messages[0].Content)

	list, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, service.Delete(ctx, "zip-nov-2025"))
	_, err = service.Load(ctx, "zip-nov-2025")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

func TestFsCheckpointValidation(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	service, err := New(path.Join(t.TempDir(), "checkpoints"))
	require.NoError(t, err)
	ctx := context.Background()
	assert.True(t, errors.Is(service.Save(ctx, nil), dao.ErrNilEntity))
	assert.True(t, errors.Is(service.Save(ctx, &execution.Checkpoint{}), dao.ErrInvalidID))
	assert.True(t, errors.Is(service.Delete(ctx, "missing"), dao.ErrNotFound))
}
