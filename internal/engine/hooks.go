package engine

import (
	"context"
	"slices"
	"sync"
)

// PreCompileFunc runs before a pass touches any file.
type PreCompileFunc func(ctx context.Context, e *Engine)

// PostCompileFunc runs after every file of a pass has been processed.
type PostCompileFunc func(ctx context.Context, e *Engine)

// CSSFilterFunc may rewrite generated CSS before it is written.
// Returning an error fails the file.
type CSSFilterFunc func(ctx context.Context, css string, fc *FilterContext) (string, error)

// FilterContext describes the file a CSS filter is looking at.
type FilterContext struct {
	Source string
	Target string
	Engine *Engine
}

type hookKind int

const (
	hookPreCompile hookKind = iota
	hookPostCompile
	hookCSSFilter
)

// HookHandle identifies a registration so it can be removed later.
type HookHandle struct {
	kind hookKind
	id   uint64
}

type registration[F any] struct {
	id uint64
	fn F
}

// Hooks holds the extension callbacks of an engine. Callbacks of each kind
// run in registration order.
type Hooks struct {
	mu     sync.RWMutex
	nextID uint64
	pre    []registration[PreCompileFunc]
	post   []registration[PostCompileFunc]
	filter []registration[CSSFilterFunc]
}

// OnPreCompile registers fn to run at the start of every pass.
func (h *Hooks) OnPreCompile(fn PreCompileFunc) HookHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.pre = append(h.pre, registration[PreCompileFunc]{id: h.nextID, fn: fn})
	return HookHandle{kind: hookPreCompile, id: h.nextID}
}

// OnPostCompile registers fn to run at the end of every completed pass.
func (h *Hooks) OnPostCompile(fn PostCompileFunc) HookHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.post = append(h.post, registration[PostCompileFunc]{id: h.nextID, fn: fn})
	return HookHandle{kind: hookPostCompile, id: h.nextID}
}

// OnCSSFilter registers fn to see generated CSS before it is written.
func (h *Hooks) OnCSSFilter(fn CSSFilterFunc) HookHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.filter = append(h.filter, registration[CSSFilterFunc]{id: h.nextID, fn: fn})
	return HookHandle{kind: hookCSSFilter, id: h.nextID}
}

// Remove unregisters a callback. Returns false if it was not registered.
func (h *Hooks) Remove(handle HookHandle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch handle.kind {
	case hookPreCompile:
		return remove(&h.pre, handle.id)
	case hookPostCompile:
		return remove(&h.post, handle.id)
	case hookCSSFilter:
		return remove(&h.filter, handle.id)
	}
	return false
}

func remove[F any](regs *[]registration[F], id uint64) bool {
	i := slices.IndexFunc(*regs, func(r registration[F]) bool { return r.id == id })
	if i < 0 {
		return false
	}
	*regs = slices.Delete(*regs, i, i+1)
	return true
}

func (h *Hooks) runPreCompile(ctx context.Context, e *Engine) {
	h.mu.RLock()
	regs := slices.Clone(h.pre)
	h.mu.RUnlock()

	for _, r := range regs {
		r.fn(ctx, e)
	}
}

func (h *Hooks) runPostCompile(ctx context.Context, e *Engine) {
	h.mu.RLock()
	regs := slices.Clone(h.post)
	h.mu.RUnlock()

	for _, r := range regs {
		r.fn(ctx, e)
	}
}

// runCSSFilter passes css through every filter in turn.
func (h *Hooks) runCSSFilter(ctx context.Context, css string, fc *FilterContext) (string, error) {
	h.mu.RLock()
	regs := slices.Clone(h.filter)
	h.mu.RUnlock()

	for _, r := range regs {
		var err error
		css, err = r.fn(ctx, css, fc)
		if err != nil {
			return "", err
		}
	}
	return css, nil
}
