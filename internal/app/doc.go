// Package app is the composition root for courier.
//
// Run loads the configuration, opens the log file and the activity journal,
// builds the gateway client and the instance reconciler, and then runs three
// things under one errgroup:
//
//   - the reconciler loop, which owns all instance state
//   - the journal pruner, which trims old activity on an hourly ticker
//   - the Bubble Tea UI, which reads the state.Store and submits commands
//
// Quitting the UI cancels the group. The reconciler returns only after its
// in-flight gateway calls have finished, so Run never leaves goroutines behind.
//
//	Run()
//	  ├─> config.Load()          file + env + defaults
//	  ├─> logging.New()          <data-dir>/courier.log
//	  ├─> activity.Open()        <data-dir>/activity.db
//	  ├─> evolution.NewClient()
//	  ├─> instance.NewReconciler(Publisher: store, Notifier: store + journal)
//	  └─> errgroup
//	        ├─> reconciler.Run()
//	        ├─> RunPruner()
//	        └─> ui.Run()          blocks until quit
//
// Fatal errors are configuration, log file, journal and client setup failures.
// Gateway failures are never fatal: the reconciler reports them as notices.
package app
