// Package manager owns the single resident forecasting model. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type and simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: lifecycle states, ModelHandle and SwitchResult.
//   - errors.go: error types and helpers (IsBusy, IsInvalidVariant, ...).
//   - ensure.go: EnsureLoaded and the shared load path.
//   - ops.go: SwitchTo and Reload.
//   - unload.go: Unload and drain of outstanding borrows.
//   - borrow.go: BorrowCurrent and the release protocol.
//   - state_persist.go: last-ready variant persisted across restarts.
//   - variants.go: catalog listing with local artifact availability.
//   - status_report.go: Status reporting.
//   - events.go, eventpub_memory.go: lifecycle events and publishers.
//   - metrics.go: Prometheus collectors.
//
// Transitions are serialized by a non-reentrant lock acquired with TryLock:
// a second switch while one is in flight fails fast with a Busy error rather
// than queuing. Borrowers only ever see a fully loaded handle.
package manager
