package packager

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oshokin/lmstudio-pkgbuild/internal/checksum"
	"github.com/oshokin/lmstudio-pkgbuild/internal/config"
	"github.com/oshokin/lmstudio-pkgbuild/internal/domain/release"
	"github.com/oshokin/lmstudio-pkgbuild/internal/logger"
	"github.com/oshokin/lmstudio-pkgbuild/internal/manifest"
	"github.com/oshokin/lmstudio-pkgbuild/internal/srcinfo"
	"github.com/oshokin/lmstudio-pkgbuild/internal/upstream"
	"github.com/oshokin/lmstudio-pkgbuild/internal/workspace"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Config holds the run settings. Nil means config.Default().
	Config *config.Config
	// HTTPClient replaces the default HTTP client when set.
	HTTPClient *http.Client
}

// Summary describes the outcome of a successful run.
type Summary struct {
	// Release is the upstream release the manifest was rendered for.
	Release *release.Release
	// PreviousVersion is the pkgver found in the manifest before the run, if any.
	PreviousVersion string
	// Downloaded is false when the artifact was already in the workspace.
	Downloaded bool
	// Checksums are the digests written into the manifest.
	Checksums release.Checksums
}

// packager holds the collaborators of a single run.
// It is unexported; callers should use Run, which encapsulates setup and validation.
type packager struct {
	// cfg holds the validated run settings.
	cfg *config.Config
	// ws is the recipe directory.
	ws *workspace.Workspace
	// client talks to the download server.
	client *upstream.Client
	// generator regenerates .SRCINFO.
	generator *srcinfo.Generator
}

// Run executes the maintenance workflow.
func Run(ctx context.Context, opts *Options) (*Summary, error) {
	ctx = logger.WithName(ctx, "packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize packager: %w", err)
	}

	summary, err := pkg.Run(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Packager completed successfully")

	return summary, nil
}

// newPackager validates the settings and wires the stage implementations.
func newPackager(opts *Options) (*packager, error) {
	cfg := config.Default()
	if opts != nil && opts.Config != nil {
		cfg = opts.Config
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	ws, err := workspace.New(cfg.WorkspaceDir)
	if err != nil {
		return nil, err
	}

	generator, err := srcinfo.NewGenerator(cfg.MakepkgCommand, ws.Dir())
	if err != nil {
		return nil, err
	}

	var clientOptions []upstream.Option
	if opts != nil && opts.HTTPClient != nil {
		clientOptions = append(clientOptions, upstream.WithHTTPClient(opts.HTTPClient))
	}

	return &packager{
		cfg:       cfg,
		ws:        ws,
		client:    upstream.NewClient(clientOptions...),
		generator: generator,
	}, nil
}

// Run executes the stages in order and stops at the first error.
func (p *packager) Run(ctx context.Context) (*Summary, error) {
	logger.InfoKV(ctx, "Starting maintenance run", "workspace", p.ws.Dir())

	if _, err := p.ws.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock workspace: %w", err)
	}

	defer func() {
		if err := p.ws.Unlock(ctx); err != nil {
			logger.WarnKV(ctx, "Could not release run marker", "error", err)
		}
	}()

	finalURL, err := p.client.Resolve(ctx, p.cfg.EntryURL)
	if err != nil {
		return nil, fmt.Errorf("resolve download url: %w", err)
	}

	rel, err := release.New(finalURL)
	if err != nil {
		return nil, fmt.Errorf("extract version: %w", err)
	}

	logger.InfoKV(ctx, "Detected version", "version", rel.Version, "file", rel.Filename)

	summary := &Summary{Release: rel}

	if summary.PreviousVersion, err = p.previousVersion(ctx, rel.Version); err != nil {
		return nil, err
	}

	if summary.Downloaded, err = p.client.Fetch(ctx, rel.URL, p.ws.Path(rel.Filename)); err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}

	if summary.Checksums, err = p.checksums(ctx, rel); err != nil {
		return nil, err
	}

	p.checkInstallScript(ctx)

	if err = p.renderManifest(ctx, rel, summary.Checksums); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Generating metadata", "path", p.cfg.SrcInfoFile)

	if err = p.generator.Generate(ctx, p.ws, p.cfg.SrcInfoFile); err != nil {
		return nil, fmt.Errorf("generate %s: %w", p.cfg.SrcInfoFile, err)
	}

	p.logSummary(ctx, summary)

	return summary, nil
}

// previousVersion reads the pkgver of the current manifest and logs how the
// resolved version relates to it. An unparsable pkgver is only reported.
func (p *packager) previousVersion(ctx context.Context, next string) (string, error) {
	previous, err := manifest.CurrentVersion(p.ws, p.cfg.ManifestFile)
	if err != nil {
		return "", fmt.Errorf("read current manifest: %w", err)
	}

	if previous == "" {
		logger.Info(ctx, "No previous manifest version found")
		return "", nil
	}

	order, err := release.Compare(previous, next)

	switch {
	case err != nil:
		logger.WarnKV(ctx, "Could not compare versions", "previous", previous, "next", next, "error", err)
	case order > 0:
		logger.InfoKV(ctx, "Upgrading manifest", "from", previous, "to", next)
	case order == 0:
		logger.InfoKV(ctx, "Manifest already at upstream version, refreshing", "version", next)
	default:
		logger.WarnKV(ctx, "Upstream version is older than the manifest", "previous", previous, "next", next)
	}

	return previous, nil
}

// checksums hashes the artifact and the icon with the same engine.
func (p *packager) checksums(ctx context.Context, rel *release.Release) (release.Checksums, error) {
	var sums release.Checksums

	artifact, err := checksum.File(p.ws.Path(rel.Filename))
	if err != nil {
		return sums, fmt.Errorf("hash artifact: %w", err)
	}

	logger.InfoKV(ctx, "Calculated checksum", "file", rel.Filename, "sha256", artifact)

	icon, err := checksum.File(p.ws.Path(p.cfg.IconFile))
	if err != nil {
		return sums, fmt.Errorf("hash icon: %w", err)
	}

	logger.InfoKV(ctx, "Calculated checksum", "file", p.cfg.IconFile, "sha256", icon)

	sums.Artifact = artifact
	sums.Icon = icon

	return sums, nil
}

// checkInstallScript warns when the install script referenced by the manifest is missing.
func (p *packager) checkInstallScript(ctx context.Context) {
	ok, err := p.ws.Exists(p.cfg.InstallFile)

	switch {
	case err != nil:
		logger.WarnKV(ctx, "Could not check install script", "path", p.cfg.InstallFile, "error", err)
	case ok:
		logger.InfoKV(ctx, "Install script present", "path", p.cfg.InstallFile)
	default:
		logger.WarnKV(ctx, "Install script not found", "path", p.ws.Path(p.cfg.InstallFile))
	}
}

// renderManifest substitutes the resolved values into the template.
func (p *packager) renderManifest(ctx context.Context, rel *release.Release, sums release.Checksums) error {
	logger.InfoKV(ctx, "Rendering manifest", "template", p.cfg.TemplateFile, "output", p.cfg.ManifestFile)

	values := manifest.Values{
		Version:    rel.Version,
		URL:        rel.URL,
		SHA256:     sums.Artifact,
		IconSHA256: sums.Icon,
	}

	missing, err := manifest.Render(p.ws, p.cfg.TemplateFile, p.cfg.ManifestFile, values)
	if err != nil {
		return fmt.Errorf("render %s: %w", p.cfg.ManifestFile, err)
	}

	for _, token := range missing {
		logger.WarnKV(ctx, "Template has no placeholder", "placeholder", token)
	}

	return nil
}

// logSummary prints the values a maintainer copies into the AUR commit.
func (p *packager) logSummary(ctx context.Context, summary *Summary) {
	logger.InfoKV(ctx, "Maintenance run complete",
		"version", summary.Release.Version,
		"url", summary.Release.URL,
		"appimage_sha256", summary.Checksums.Artifact,
		"icon_sha256", summary.Checksums.Icon,
	)

	logger.Infof(ctx, "sha256sums=%s", summary.Checksums.SumsLine())
}
