package judge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	dockerWorkingDir = "/workspace"
	stdinFileName    = "input.txt"
)

// DockerConfig groups settings of the local container backend.
type DockerConfig struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkspaceRoot string
	Logger        zerolog.Logger
}

// containerClient is the part of the Docker API the runner drives.
type containerClient interface {
	client.ContainerAPIClient
	Close() error
}

// DockerRunner runs programs in throwaway containers on the local Docker daemon.
// It stands in for the remote execution service during development.
type DockerRunner struct {
	client containerClient
	cfg    DockerConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerRunner constructs a Docker backed runner.
func NewDockerRunner(cfg DockerConfig) (*DockerRunner, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}

	return &DockerRunner{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/vasiprashanti/techlearn-api/pkg/judge"),
		logger: cfg.Logger.With().Str("component", "docker_runner").Logger(),
	}, nil
}

// Run executes the program with stdin redirected from a mounted file.
func (r *DockerRunner) Run(parent context.Context, req RunRequest) Result {
	spec, ok := languageCatalog[req.Language]
	if !ok {
		return failure(StatusTransportError, "unsupported language", nil)
	}

	ctx, span := r.tracer.Start(parent, "docker.runner.run", trace.WithAttributes(
		attribute.String("docker.image", spec.image),
		attribute.String("judge.language", req.Language.String()),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result := r.run(ctx, spec, req)
	result.Duration = time.Since(start)
	observeRun("docker", req.Language, result)

	if !result.Accepted {
		span.SetStatus(codes.Error, result.StatusText)
	}
	return result
}

func (r *DockerRunner) run(ctx context.Context, spec languageSpec, req RunRequest) Result {
	workspace, err := os.MkdirTemp(r.cfg.WorkspaceRoot, "run-")
	if err != nil {
		return failure(StatusTransportError, "create workspace", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, spec.fileName), []byte(req.Source), 0o600); err != nil {
		return failure(StatusTransportError, "write source", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, stdinFileName), []byte(req.Stdin), 0o600); err != nil {
		return failure(StatusTransportError, "write stdin", err)
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:    r.cfg.MemoryLimitMB * 1024 * 1024,
			CPUShares: r.cfg.CPUShares,
		},
		NetworkMode: "none",
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workspace,
			Target: dockerWorkingDir,
		}},
	}

	config := &container.Config{
		Image:        spec.image,
		Cmd:          []string{"sh", "-c", fmt.Sprintf("(%s) < %s", spec.command, stdinFileName)},
		WorkingDir:   dockerWorkingDir,
		AttachStdout: true,
		AttachStderr: true,
	}

	resp, err := r.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return contextFailure(ctx, fmt.Errorf("container create: %w", err))
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := r.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return contextFailure(ctx, fmt.Errorf("container start: %w", err))
	}

	statusCh, errCh := r.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			r.kill(containerID)
			return contextFailure(ctx, fmt.Errorf("container wait: %w", err))
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-ctx.Done():
		r.kill(containerID)
		return contextFailure(ctx, ctx.Err())
	}

	logCtx, cancelLogs := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelLogs()
	logReader, err := r.client.ContainerLogs(logCtx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return failure(StatusTransportError, "fetch container logs", err)
	}
	defer logReader.Close()

	stdout, stderr, err := splitDockerLogs(logReader)
	if err != nil {
		return failure(StatusTransportError, "read container logs", err)
	}

	return exitResult(exitCode, stdout, stderr)
}

// exitResult classifies a finished container by its exit code. A non-zero exit
// reports stderr, or the code itself when the program wrote nothing there.
func exitResult(exitCode int, stdout, stderr string) Result {
	result := Result{
		Accepted:   exitCode == 0,
		Output:     NormalizeOutput(stdout),
		StatusCode: exitCode,
		StatusText: "exited",
	}
	if !result.Accepted {
		result.ErrorText = firstNonEmpty(stderr, fmt.Sprintf("process exited with code %d", exitCode))
	}
	return result
}

func (r *DockerRunner) kill(containerID string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.ContainerKill(killCtx, containerID, "KILL"); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill container")
	}
}

func splitDockerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the underlying Docker client.
func (r *DockerRunner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
