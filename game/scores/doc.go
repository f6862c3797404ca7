// Package scores keeps the top-score history of the Dice Merge Game.
//
// The engine emits score_snapshot events after merges and once at game
// over. A Recorder filters them (rate limiting in-game snapshots per run)
// and writes Records into a Store. Two stores are provided: FileStore,
// which keeps a capped JSON history, and sqlite.Store in the sqlite
// subpackage.
//
// Each run (one StartSession) owns at most one record. Later snapshots of
// the same run replace it, so the leaderboard never lists one game twice.
package scores
