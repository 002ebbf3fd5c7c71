// Package env composes the environment handed to dev-server children.
package env

import (
	"os"
	"sort"
	"strings"
)

// Variables every dev-server child receives on top of the composed base.
const (
	ForceColor = "FORCE_COLOR=1"
	NodeEnv    = "NODE_ENV=development"
)

type Var map[string]string

type Env struct {
	Var Var // global variables (K->V) from configuration
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS caches the current process environment as the base. It must not
// race with Merge.
func (e *Env) FromOS() {
	e.env = parse(os.Environ())
}

// WithSet returns a copy of e with K=V added to the globals.
func (e *Env) WithSet(k, v string) *Env {
	out := &Env{Var: make(Var, len(e.Var)+1), env: e.env}
	for kk, vv := range e.Var {
		out.Var[kk] = vv
	}
	if k != "" {
		out.Var[k] = v
	}
	return out
}

// WithList returns a copy of e with every "K=V" entry of kvs added.
func (e *Env) WithList(kvs []string) *Env {
	out := e.WithSet("", "")
	for k, v := range parse(kvs) {
		out.Var[k] = v
	}
	return out
}

// Set sets a global variable K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Unset removes a global variable.
func (e *Env) Unset(k string) {
	if e.Var != nil {
		delete(e.Var, k)
	}
}

// Merge composes the final environment list applying order:
// base = cached OS env, or a fresh read of os.Environ when FromOS was not called
// then apply global e.Var overrides, with ${VAR} expanded against the result
// then apply extra (slice of "K=V") overrides verbatim.
// The result is sorted by key.
func (e *Env) Merge(extra []string) []string {
	// e is shared across concurrent starts; never fill the cache here.
	base := e.env
	if base == nil {
		base = parse(os.Environ())
	}
	m := make(Var, len(base)+len(e.Var)+len(extra))
	for k, v := range base {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = expand(v, m)
	}
	for k, v := range parse(extra) {
		m[k] = v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}

// Child returns the environment for a dev-server child: Merge plus
// FORCE_COLOR and NODE_ENV.
func (e *Env) Child() []string {
	return e.Merge([]string{ForceColor, NodeEnv})
}

func parse(kvs []string) Var {
	m := make(Var, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	// simple ${VAR} expansion; iterate over keys present
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
