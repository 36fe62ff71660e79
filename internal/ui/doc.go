// Package ui is courier's Bubble Tea dashboard.
//
// # Layout
//
// One screen, top to bottom:
//
//   - header: instance name, connection badge, pending-command spinner,
//     gateway-offline chip and last poll time
//   - command bar: the actions the current state offers plus global keys
//   - status card: owner, profile name, message/contact/chat counts, poll health
//   - pairing panel (PAIRING only): phone pairing code and where the QR image
//     was written
//   - notice line: the newest notice or the result of the last key press
//   - recent activity: the newest entries of the activity journal
//
// "l" swaps the lower part for the engine log, a viewport over the tail of the
// zap log file that follows new lines through an fsnotify watch.
//
// # Data flow
//
// The model never touches the reconciler's state directly. A tick fetches a
// state.Snapshot from the store; key presses become tea.Cmds that call the
// Controller and report back with actionResultMsg. Commands that the current
// state does not offer are refused before they reach the reconciler, and
// delete asks for confirmation through a Modal.
//
// When a snapshot carries a pairing artifact with a new attempt id, its image
// is written once to <artifact-dir>/pairing-<instance>.png.
//
// # Themes
//
// "T" cycles Dracula, Nightfox and Slate and saves the choice to prefs.
package ui
