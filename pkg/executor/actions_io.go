package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
)

func (e *Executor) screenshot(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Path == "" {
		return missing(a, "path")
	}
	data, err := e.session.Screenshot(ctx)
	if err != nil {
		return errored(err)
	}
	if err := writeFile(a.Path, data); err != nil {
		return errored(err)
	}
	return passed("screenshot saved to %s", a.Path)
}

func (e *Executor) saveSource(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Path == "" {
		return missing(a, "path")
	}
	src, err := e.session.PageSource(ctx)
	if err != nil {
		return errored(err)
	}
	if err := writeFile(a.Path, []byte(src)); err != nil {
		return errored(err)
	}
	return passed("page source saved to %s", a.Path)
}

func (e *Executor) saveCookies(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Path == "" {
		return missing(a, "path")
	}
	cookies, err := e.session.Cookies(ctx)
	if err != nil {
		return errored(err)
	}
	if cookies == nil {
		cookies = []core.Cookie{}
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return errored(err)
	}
	if err := writeFile(a.Path, data); err != nil {
		return errored(err)
	}
	return passed("%d cookies saved to %s", len(cookies), a.Path)
}

// loadCookies adds every cookie from a save_cookies file. Entries that are
// not cookie objects are skipped, sameSite is dropped, and cookies the
// browser refuses are ignored.
func (e *Executor) loadCookies(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Path == "" {
		return missing(a, "path")
	}
	data, err := os.ReadFile(a.Path) //#nosec G304 -- path comes from the flow file
	if err != nil {
		return errored(fmt.Errorf("load cookies: %w", err))
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return errored(fmt.Errorf("load cookies: %s is not a JSON array: %w", a.Path, err))
	}

	added := 0
	for i, raw := range entries {
		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			logStep(a, "skipping cookie %d: not an object", i)
			continue
		}
		delete(fields, "sameSite")

		normalized, err := json.Marshal(fields)
		if err != nil {
			continue
		}
		var cookie core.Cookie
		if err := json.Unmarshal(normalized, &cookie); err != nil {
			logStep(a, "skipping cookie %d: %v", i, err)
			continue
		}

		if err := e.session.AddCookie(ctx, cookie); err != nil {
			logger.Debug("cookie %q rejected: %v", cookie.Name, err)
			continue
		}
		added++
	}
	return passed("loaded %d of %d cookies from %s", added, len(entries), a.Path)
}

// writeFile writes data to path, creating parent directories.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
