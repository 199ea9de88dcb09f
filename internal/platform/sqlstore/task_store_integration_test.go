package sqlstore_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/platform/sqlstore"
	"github.com/phrazzld/taskhub-api/internal/store"
	"github.com/phrazzld/taskhub-api/internal/testdb"
)

// TestTaskStore_Integration runs against the server database named by
// DATABASE_URL, inside a transaction that is always rolled back.
func TestTaskStore_Integration(t *testing.T) {
	db, dialect := testdb.OpenIntegration(t)
	s := sqlstore.NewTaskStore(db, dialect, nil)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		txStore := s.WithTx(tx)

		task := createTask(t, txStore, "integration", 2)

		locked, err := txStore.GetByIDForUpdate(ctx, task.ID)
		require.NoError(t, err)

		locked.Status = domain.TaskStatusInProgress
		locked.Touch(time.Now())
		require.NoError(t, txStore.Update(ctx, locked))
		require.NoError(t, txStore.CreateLog(ctx, &domain.TaskLog{
			TaskID:    task.ID,
			Status:    domain.TaskStatusInProgress,
			CreatedAt: locked.UpdatedAt,
		}))

		tasks, err := txStore.List(ctx, store.TaskFilter{Title: "INTEGR", Status: "in_progress"})
		require.NoError(t, err)
		require.NotEmpty(t, tasks)
		assert.Equal(t, task.ID, tasks[len(tasks)-1].ID)

		require.NoError(t, txStore.Delete(ctx, task.ID))
		logs, err := txStore.GetLogs(ctx, task.ID)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})
}
