// Package scaffold generates the skeleton of a calyx application or
// service from embedded templates. It is the engine behind the calyx
// command line tool.
package scaffold

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/calyxweb/calyx/kit/errors"
)

//go:embed all:templates
var templatesFS embed.FS

// names must be usable as Go package names and folder names
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Scaffolder renders project skeletons into a target directory.
type Scaffolder struct {
	log *zap.Logger
}

// New returns a Scaffolder logging through log.
func New(log *zap.Logger) *Scaffolder {
	return &Scaffolder{log: log}
}

type templateData struct {
	// Name is the app or service name, e.g. "florist".
	Name string
	// Title is the name with its first letter upper-cased, for doc
	// comments and exported identifiers.
	Title string
}

func newTemplateData(name string) templateData {
	return templateData{
		Name:  name,
		Title: strings.ToUpper(name[:1]) + name[1:],
	}
}

// CreateApp generates a runnable application named name under dir:
// a go.mod, a main.go wired to the calyx app shell, a migrations folder,
// and a sample "hello" service. dir must not already contain a go.mod.
func (s *Scaffolder) CreateApp(dir, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return &errors.Error{
			Code: errors.EConflict,
			Msg:  fmt.Sprintf("%s already contains a go module", dir),
		}
	}

	if err := s.renderTree("templates/app", dir, newTemplateData(name)); err != nil {
		return err
	}

	// every app starts with one sample service to copy from
	if err := s.CreateService(filepath.Join(dir, "services"), "hello"); err != nil {
		return err
	}

	s.log.Info("Created app", zap.String("name", name), zap.String("dir", dir))
	return nil
}

// CreateService generates a service package named name under servicesDir:
// routes, actions, repositories, datasources and dtos files wired
// together in the layered convention. It refuses to overwrite an
// existing service.
func (s *Scaffolder) CreateService(servicesDir, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	dst := filepath.Join(servicesDir, name)
	if _, err := os.Stat(dst); err == nil {
		return &errors.Error{
			Code: errors.EConflict,
			Msg:  fmt.Sprintf("service %q already exists in %s", name, servicesDir),
		}
	}

	if err := s.renderTree("templates/service", dst, newTemplateData(name)); err != nil {
		return err
	}

	s.log.Info("Created service", zap.String("name", name), zap.String("dir", dst))
	return nil
}

// renderTree renders every template under root in templatesFS into dst,
// preserving the directory layout and stripping the .tmpl suffix.
func (s *Scaffolder) renderTree(root, dst string, data templateData) error {
	return fs.WalkDir(templatesFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, strings.TrimSuffix(rel, ".tmpl"))

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		tmpl, err := template.ParseFS(templatesFS, path)
		if err != nil {
			return &errors.Error{Code: errors.EInternal, Msg: fmt.Sprintf("bad scaffold template %s", path), Err: err}
		}

		f, err := os.Create(target)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := tmpl.Execute(f, data); err != nil {
			return &errors.Error{Code: errors.EInternal, Msg: fmt.Sprintf("rendering %s failed", path), Err: err}
		}

		s.log.Debug("Rendered scaffold file", zap.String("path", target))
		return nil
	})
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("%q is not a valid name: use lowercase letters, digits and underscores, starting with a letter", name),
		}
	}
	return nil
}
