// Package scenes implements a hierarchical scene-object runtime: a tree of
// stateful nodes that resolve shared context (time ranges, data, template
// variables) by walking the tree, together with a dependency-tracked variable
// system and a string interpolation engine.
//
// Every node embeds *Object, which provides:
//   - an immutable State snapshot replaced atomically by SetState,
//   - state subscriptions and a local event bus with optional bubbling,
//   - activation/deactivation of the node and the children held in its slots.
//
// Capabilities (time range, variables, data, layout) are resolved with the
// traversal helpers in traversal.go rather than by direct references:
//
//	tr, err := scenes.GetTimeRange(panel)
//	v := scenes.LookupVariable("region", panel)
//	out, err := scenes.Interpolate(panel, "rate(x{region=~\"${region:regex}\"}[$__interval])", nil, "")
//
// Query variables evaluate their query with expr by default; "cel" and, with
// the js_eval build tag, "js" are also available. Process defaults come from
// config.Load and are applied with Configure. Scenes can also be declared in
// HCL files (pkg/scenefile) and their URL state persisted (pkg/urlsync).
//
// A scene is mutated from a single goroutine. State reads are safe from other
// goroutines; process-wide registries (formats, macros, runtime data sources)
// serialise registration.
package scenes
