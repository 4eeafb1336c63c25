// Package logging provides config-driven categorized logging for expandinator.
// Every category is a named child of one zap logger; categories can be switched
// off individually from the logging section of the config file.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config loading
	CategoryRewrite   Category = "rewrite"   // Rewrite pipeline passes
	CategorySyntax    Category = "syntax"    // Tree-sitter parsing and printing
	CategoryCrates    Category = "crates"    // Registry index and crate downloads
	CategoryManifest  Category = "manifest"  // Cargo.toml patching
	CategoryToolchain Category = "toolchain" // cargo / wasm-bindgen invocations
	CategoryBuild     Category = "build"     // Orchestration of a full run
	CategoryWatch     Category = "watch"     // File watching for rewrite --watch
)

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, text
	Categories map[string]bool // nil = all enabled
	OutputPath string          // empty = stderr
}

// Logger is a category-scoped sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the process logger from opts. Until it is called (or
// SetBase is used) every logger is a no-op.
func Initialize(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	var cfg zap.Config
	if opts.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	if opts.OutputPath != "" {
		cfg.OutputPaths = []string{opts.OutputPath}
	} else {
		cfg.OutputPaths = []string{"stderr"}
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	SetBase(l, opts.Categories)
	Get(CategoryBoot).Debug("logging initialized: level=%s format=%s", level, opts.Format)
	return nil
}

// SetBase installs l as the root logger. Tests pass zap.NewNop() or an
// observer core here.
func SetBase(l *zap.Logger, enabled map[string]bool) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	base = l
	categories = enabled
	loggers = make(map[Category]*Logger)
}

// Base returns the root zap logger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// ParseLevel maps the config level names onto zap levels. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	root := base
	if !categoryEnabled(category) {
		root = zap.NewNop()
	}
	l := &Logger{
		category: category,
		sugar:    root.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Category returns the category this logger writes to.
func (l *Logger) Category() Category {
	return l.category
}

// With returns a child logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes buffered entries of the root logger.
func Sync() {
	_ = Base().Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Rewrite logs to the rewrite category
func Rewrite(format string, args ...interface{}) {
	Get(CategoryRewrite).Info(format, args...)
}

// RewriteDebug logs debug to the rewrite category
func RewriteDebug(format string, args ...interface{}) {
	Get(CategoryRewrite).Debug(format, args...)
}

// RewriteWarn logs warning to the rewrite category
func RewriteWarn(format string, args ...interface{}) {
	Get(CategoryRewrite).Warn(format, args...)
}

// SyntaxDebug logs debug to the syntax category
func SyntaxDebug(format string, args ...interface{}) {
	Get(CategorySyntax).Debug(format, args...)
}

// Crates logs to the crates category
func Crates(format string, args ...interface{}) {
	Get(CategoryCrates).Info(format, args...)
}

// CratesDebug logs debug to the crates category
func CratesDebug(format string, args ...interface{}) {
	Get(CategoryCrates).Debug(format, args...)
}

// ManifestDebug logs debug to the manifest category
func ManifestDebug(format string, args ...interface{}) {
	Get(CategoryManifest).Debug(format, args...)
}

// Toolchain logs to the toolchain category
func Toolchain(format string, args ...interface{}) {
	Get(CategoryToolchain).Info(format, args...)
}

// ToolchainDebug logs debug to the toolchain category
func ToolchainDebug(format string, args ...interface{}) {
	Get(CategoryToolchain).Debug(format, args...)
}

// Build logs to the build category
func Build(format string, args ...interface{}) {
	Get(CategoryBuild).Info(format, args...)
}

// BuildDebug logs debug to the build category
func BuildDebug(format string, args ...interface{}) {
	Get(CategoryBuild).Debug(format, args...)
}

// BuildError logs error to the build category
func BuildError(format string, args ...interface{}) {
	Get(CategoryBuild).Error(format, args...)
}

// Watch logs to the watch category
func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

// WatchError logs error to the watch category
func WatchError(format string, args ...interface{}) {
	Get(CategoryWatch).Error(format, args...)
}
