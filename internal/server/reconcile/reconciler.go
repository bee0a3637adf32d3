// Package reconcile implements the merge between a client's locally cached
// task set and the server's stored set for one owner. The reconciler is
// pure: it performs no I/O and returns a write plan for the caller to
// execute, which keeps it deterministic and testable without a database.
package reconcile

import "github.com/dmitrijs2005/tasksync/internal/server/models"

// Result is the outcome of one reconciliation: the merged view to return
// to the client plus the write plan (ToCreate, ToUpdate) the caller must
// apply to the store.
type Result struct {
	Merged   []models.Task
	ToCreate []models.Task
	ToUpdate []models.Task
}

// Reconcile merges local (client-submitted) tasks with remote (stored)
// tasks, matching by TaskID.
//
// Per local task, in input order:
//   - no remote match: classified as a create; the owner is stamped onto
//     the task and its field values are preserved as given;
//   - remote match and local.UpdatedAt is strictly newer: classified as an
//     update; the local field set (plus stamped owner) replaces the row;
//   - otherwise, ties included: the stored row is kept verbatim and no
//     write is queued, so a duplicate or retried sync is a no-op.
//
// Remote tasks absent from the local set are appended unchanged after the
// local-derived entries, in fetch order. Callers fetch remote tasks
// pre-sorted, so the merged view keeps a sensible default order.
//
// Zero UpdatedAt values sort as oldest; callers map unparseable client
// timestamps to the zero time rather than rejecting them. Deletions never
// propagate through sync: there are no tombstones, so a task deleted on
// one device reappears if another device still syncs a local copy.
func Reconcile(ownerID string, local, remote []models.Task) Result {
	remoteByID := make(map[string]models.Task, len(remote))
	for _, t := range remote {
		remoteByID[t.TaskID] = t
	}
	localIDs := make(map[string]struct{}, len(local))
	for _, t := range local {
		localIDs[t.TaskID] = struct{}{}
	}

	res := Result{Merged: make([]models.Task, 0, len(local)+len(remote))}

	for _, lt := range local {
		rt, exists := remoteByID[lt.TaskID]
		if !exists {
			lt.UserID = ownerID
			res.ToCreate = append(res.ToCreate, lt)
			res.Merged = append(res.Merged, lt)
			continue
		}
		if lt.UpdatedAt.After(rt.UpdatedAt) {
			lt.UserID = ownerID
			res.ToUpdate = append(res.ToUpdate, lt)
			res.Merged = append(res.Merged, lt)
			continue
		}
		res.Merged = append(res.Merged, rt)
	}

	for _, rt := range remote {
		if _, ok := localIDs[rt.TaskID]; !ok {
			res.Merged = append(res.Merged, rt)
		}
	}

	return res
}
