// Package urlsync persists the URL state of a scene tree.
//
// Syncer.Save collects the URLSyncer state of every object under a root with
// scenes.CollectURLState and hands it to a Store; Syncer.Restore loads it back
// and applies it with scenes.ApplyURLState. Stores only load and save one
// snapshot per Ref.
//
// Deterministic keys:
//
//	Ref.Identifier() provides a canonical storage key based on the owning
//	scope (`system`, `tenant/<id>` or `user/<id>`) and the scene name.
package urlsync
