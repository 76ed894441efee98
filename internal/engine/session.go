package engine

import (
	"github.com/leapstack-labs/quantdb/internal/router"
)

// Lang returns the current session language.
func (p *Processor) Lang() router.Lang {
	p.langMu.RLock()
	defer p.langMu.RUnlock()
	return p.lang
}

// SetLang switches the session language. Names are matched
// case-insensitively and accept the long forms (python, duckdb, ...).
func (p *Processor) SetLang(name string) error {
	lang, err := router.ParseLang(name)
	if err != nil {
		return err
	}
	p.langMu.Lock()
	p.lang = lang
	p.langMu.Unlock()
	p.logger.Debug("language changed", "lang", string(lang))
	return nil
}

// Prompt returns the console prompt for the current language.
func (p *Processor) Prompt() string {
	return p.Lang().Prompt()
}

// Config returns a snapshot of the processor settings.
func (p *Processor) Config() map[string]any {
	return map[string]any{
		"lang":     string(p.Lang()),
		"prompt":   p.Prompt(),
		"database": p.cfg.Database,
	}
}

// handle exposes the processor to scripts as qdb, pdb and pythondb. It
// only touches the language lock, so scripts can call it while the
// processor lock is held.
type handle struct {
	p *Processor
}

func (h handle) SetLang(name string) error { return h.p.SetLang(name) }
func (h handle) Lang() string              { return string(h.p.Lang()) }
func (h handle) Prompt() string            { return h.p.Prompt() }
func (h handle) Config() map[string]any    { return h.p.Config() }
