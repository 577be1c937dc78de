// Package validation fetches tenant-supplied JavaScript validator modules,
// persists them under a content-addressed name, and executes them in an
// embedded engine with a strict time budget.
package validation

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/mightymax/trusted-frame-forms/internal/apperror"
	"github.com/mightymax/trusted-frame-forms/internal/config"
	"github.com/mightymax/trusted-frame-forms/internal/model"
)

// exportDefaultRe rewrites the module's `export default` into an assignment
// the engine can evaluate; goja has no native ES module loader.
var exportDefaultRe = regexp.MustCompile(`(?m)^\s*export\s+default\s+`)

// Loader resolves, fetches and compiles validator modules.
type Loader struct {
	client      *http.Client
	cacheDir    string
	execTimeout time.Duration
	log         *zap.Logger

	mu       sync.Mutex
	programs map[string]*goja.Program
}

// NewLoader creates a Loader that caches fetched modules under cacheDir.
func NewLoader(cacheDir string, fetchTimeout, execTimeout time.Duration, log *zap.Logger) (*Loader, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create validator cache dir: %w", err)
	}
	return &Loader{
		client:      &http.Client{Timeout: fetchTimeout},
		cacheDir:    cacheDir,
		execTimeout: execTimeout,
		log:         log,
		programs:    make(map[string]*goja.Program),
	}, nil
}

// Validator is a compiled tenant validation function.
type Validator struct {
	prog    *goja.Program
	timeout time.Duration
}

// Load returns the validator for the given form, or nil if the form has no
// validator reference. Identical source URLs hash to the identical cached
// artifact; concurrent loads converge on the same bytes.
func (l *Loader) Load(ctx context.Context, tenant *config.TenantConfig, form *config.FormConfig) (*Validator, error) {
	if form.Validator == "" {
		return nil, nil
	}

	base, err := url.Parse(tenant.FormServer)
	if err != nil {
		return nil, fmt.Errorf("invalid template host %q: %w", tenant.FormServer, err)
	}
	ref, err := url.Parse(form.Validator)
	if err != nil {
		return nil, fmt.Errorf("invalid validator reference %q: %w", form.Validator, err)
	}
	moduleURL := base.ResolveReference(ref).String()

	sum := md5.Sum([]byte(moduleURL))
	hash := hex.EncodeToString(sum[:])

	l.mu.Lock()
	prog, ok := l.programs[hash]
	l.mu.Unlock()
	if ok {
		return &Validator{prog: prog, timeout: l.execTimeout}, nil
	}

	l.log.Info("importing validator module", zap.String("url", moduleURL))
	source, err := l.fetch(ctx, moduleURL)
	if err != nil {
		return nil, err
	}

	if err := l.persist(hash, source); err != nil {
		return nil, err
	}

	prog, err = compile(hash, source)
	if err != nil {
		return nil, &apperror.LoadError{URL: moduleURL, Err: err}
	}
	if err := checkDefaultExport(prog, l.execTimeout); err != nil {
		return nil, &apperror.LoadError{URL: moduleURL, Err: err}
	}

	l.mu.Lock()
	// A concurrent load of the same hash compiled the same source; either
	// program is interchangeable.
	if cached, ok := l.programs[hash]; ok {
		prog = cached
	} else {
		l.programs[hash] = prog
	}
	l.mu.Unlock()

	return &Validator{prog: prog, timeout: l.execTimeout}, nil
}

// ArtifactPath returns where the module for the given source URL is cached.
func (l *Loader) ArtifactPath(moduleURL string) string {
	sum := md5.Sum([]byte(moduleURL))
	return filepath.Join(l.cacheDir, hex.EncodeToString(sum[:])+".js")
}

func (l *Loader) fetch(ctx context.Context, moduleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, moduleURL, nil)
	if err != nil {
		return "", &apperror.FetchError{Kind: "validator", URL: moduleURL, Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", &apperror.FetchError{Kind: "validator", URL: moduleURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &apperror.FetchError{Kind: "validator", URL: moduleURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &apperror.FetchError{Kind: "validator", URL: moduleURL, Err: err}
	}
	return string(body), nil
}

// persist writes the fetched source under its content-addressed name. The
// write goes through a temp file and a rename: two concurrent writers of the
// same hash produce identical bytes, so last-rename-wins is safe.
func (l *Loader) persist(hash, source string) error {
	final := filepath.Join(l.cacheDir, hash+".js")
	tmp, err := os.CreateTemp(l.cacheDir, hash+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage validator module: %w", err)
	}
	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write validator module: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write validator module: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store validator module: %w", err)
	}
	return nil
}

// compile rewrites the ES module into an evaluatable script and compiles it.
func compile(name, source string) (*goja.Program, error) {
	script := "var exports = {};\n" + exportDefaultRe.ReplaceAllString(source, "exports.default = ")
	return goja.Compile(name+".js", script, true)
}

// checkDefaultExport evaluates the compiled module once to confirm it
// exposes a callable default export. Anything else is a load defect, not an
// execution one.
func checkDefaultExport(prog *goja.Program, timeout time.Duration) (err error) {
	vm := goja.New()
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("validator timed out")
	})
	defer timer.Stop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module evaluation panicked: %v", r)
		}
	}()

	if _, err := vm.RunProgram(prog); err != nil {
		return err
	}
	exports := vm.Get("exports")
	if exports == nil || goja.IsUndefined(exports) || goja.IsNull(exports) {
		return fmt.Errorf("module has no exports")
	}
	if _, ok := goja.AssertFunction(exports.ToObject(vm).Get("default")); !ok {
		return fmt.Errorf("module exposes no callable default export")
	}
	return nil
}

// Run executes the validator against the submitted fields. A fresh runtime
// is used per invocation so concurrent requests share nothing, and the
// engine is interrupted once the time budget is spent.
func (v *Validator) Run(fields map[string]string) (result model.ErrorSet, err error) {
	vm := goja.New()

	timer := time.AfterFunc(v.timeout, func() {
		vm.Interrupt("validator timed out")
	})
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &apperror.ExecError{Err: fmt.Errorf("validator panicked: %v", r)}
		}
	}()

	if _, err := vm.RunProgram(v.prog); err != nil {
		return nil, &apperror.ExecError{Err: err}
	}

	exports := vm.Get("exports")
	if exports == nil || goja.IsUndefined(exports) || goja.IsNull(exports) {
		return nil, &apperror.ExecError{Err: fmt.Errorf("module has no exports")}
	}
	def := exports.ToObject(vm).Get("default")
	fn, ok := goja.AssertFunction(def)
	if !ok {
		return nil, &apperror.ExecError{Err: fmt.Errorf("module exposes no callable default export")}
	}

	value, err := fn(goja.Undefined(), vm.ToValue(fields))
	if err != nil {
		return nil, &apperror.ExecError{Err: err}
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}

	obj := value.ToObject(vm)
	errs := make(model.ErrorSet)
	for _, key := range obj.Keys() {
		errs[key] = obj.Get(key).String()
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}
