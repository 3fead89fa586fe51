package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"

	"github.com/JackRipper1888/GPUFabric/internal/downloader"
	"github.com/JackRipper1888/GPUFabric/internal/engine"
	"github.com/JackRipper1888/GPUFabric/internal/heartbeat"
	"github.com/JackRipper1888/GPUFabric/internal/notifier"
	"github.com/JackRipper1888/GPUFabric/pkg/bus"
	"github.com/JackRipper1888/GPUFabric/pkg/config"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/hardware"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
	"github.com/JackRipper1888/GPUFabric/pkg/ntpsync"
	"github.com/JackRipper1888/GPUFabric/pkg/progress"
)

var rootCmd = &cobra.Command{
	Use:   "device-agent",
	Short: "Reports device telemetry, accepts model assignments and serves local inference",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(logger.New("device-agent"))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.String("server-url", "http://127.0.0.1:8080", "base URL of the API server, used for catalog lookups and the HTTP notifier fallback")
	viper.BindPFlag("SERVER_URL", flags.Lookup("server-url"))

	flags.String("client-id", "", "this device's client UUID (a new one is generated on each start if empty; it is not persisted)")
	viper.BindPFlag("CLIENT_ID", flags.Lookup("client-id"))

	flags.Duration("heartbeat-interval", 10*time.Second, "how often to publish a heartbeat")
	viper.BindPFlag("HEARTBEAT_INTERVAL", flags.Lookup("heartbeat-interval"))

	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a model file with resumable, parallel ranged requests",
	RunE:  runDownload,
}

func init() {
	flags := downloadCmd.Flags()
	flags.String("url", "", "source URL (required)")
	flags.String("output", "", "destination file path (required)")
	flags.Int("chunks", 4, "number of parallel chunks")
	flags.Int64("chunk-size", 8<<20, "chunk size in bytes")
	flags.String("checksum", "", "expected SHA-256 checksum, verified after assembly")
	flags.Bool("no-resume", false, "always restart from scratch instead of resuming a partial download")
	downloadCmd.MarkFlagRequired("url")
	downloadCmd.MarkFlagRequired("output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	l := logger.New("device-agent-download")
	flags := cmd.Flags()

	srcURL, _ := flags.GetString("url")
	output, _ := flags.GetString("output")
	chunks, _ := flags.GetInt("chunks")
	chunkSize, _ := flags.GetInt64("chunk-size")
	checksum, _ := flags.GetString("checksum")
	noResume, _ := flags.GetBool("no-resume")

	bar := progress.NewBar(os.Stdout, filepath.Base(output))
	dl := downloader.New(downloader.Config{
		URL:            srcURL,
		OutputPath:     output,
		ParallelChunks: chunks,
		ChunkSize:      chunkSize,
		Checksum:       checksum,
		Resume:         !noResume,
	}, l, bar.Render)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dl.Download(ctx); err != nil {
		return err
	}
	bar.Done()
	return nil
}

func runAgent(l *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	serverURL := viper.GetString("SERVER_URL")
	clientIDStr := viper.GetString("CLIENT_ID")
	if clientIDStr == "" {
		clientIDStr = uuid.NewString()
		l.Info("generated new client id", "client_id", clientIDStr)
	}
	clientUUID, err := uuid.Parse(clientIDStr)
	if err != nil {
		return fmt.Errorf("invalid client id %q: %w", clientIDStr, err)
	}

	if result, err := ntpsync.CheckDefault(); err != nil {
		l.Warn("ntp check failed", "error", err)
	} else if !result.Healthy {
		l.Warn("clock skew exceeds threshold", "offset", result.Offset)
	}

	caps := hardware.Detect()
	osType := hardware.DetectOSType()
	l.Info("hardware detected", "nvidia", caps.HasNvidia, "amd", caps.HasAMD, "os", osType)

	b, err := bus.Connect(cfg.NatsURL, l)
	if err != nil {
		l.Warn("bus connect failed, heartbeats will not be published", "error", err)
	} else {
		defer b.Close()
	}

	host := engine.NewHost(l, cfg.PluginDir)
	defer host.Shutdown()

	var notify *notifier.Notifier
	if b != nil {
		notify = notifier.New(b, serverURL, l)
	} else {
		notify = notifier.New(nil, serverURL, l)
	}

	eng := engine.New(l, func(modelID string) {
		model := notifier.NewModel(modelID, clientIDStr, time.Now())
		notify.Notify(ctx, clientIDStr, []notifier.Model{model}, nil)
	})

	heartbeatInterval := viper.GetDuration("HEARTBEAT_INTERVAL")
	if heartbeatInterval <= 0 {
		heartbeatInterval = 10 * time.Second
	}

	go heartbeatLoop(ctx, b, clientUUID, caps, osType, l, heartbeatInterval)
	go assignmentLoop(ctx, serverURL, caps, osType, host, eng, l)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down...")
	cancel()
	return nil
}

func heartbeatLoop(ctx context.Context, b *bus.Bus, clientID uuid.UUID, caps *hardware.Capabilities, osType store.OSType, l *logger.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b == nil {
				continue
			}
			msg := buildHeartbeat(clientID, caps, osType)
			payload, err := heartbeat.Encode(msg)
			if err != nil {
				l.Error("failed to encode heartbeat", "error", err)
				continue
			}
			subject := bus.SubjectClientHeartbeats + "." + clientID.String()
			if err := b.Publish(ctx, subject, payload); err != nil {
				l.Error("failed to publish heartbeat", "error", err)
			}
		}
	}
}

func buildHeartbeat(clientID uuid.UUID, caps *hardware.Capabilities, osType store.OSType) heartbeat.Message {
	engineType := store.EngineTypeNone
	if caps.HasNvidia {
		engineType = store.EngineTypeLlama
	}

	gpus := hardware.DetectGPUs()
	devices := make([]heartbeat.DeviceInfo, 0, len(gpus))
	var totalMem uint32
	for _, g := range gpus {
		devices = append(devices, heartbeat.DeviceInfo{
			PodID:      g.PodID,
			EngineType: engineType,
			OSType:     osType,
			MemtotalGB: g.MemTotalGB,
			GPUUtil:    g.UtilPct,
		})
		totalMem += g.MemTotalGB
	}

	return heartbeat.Message{
		ClientID: clientID,
		SystemInfo: heartbeat.SystemInfo{
			CPUUsage:    0,
			MemoryUsage: 0,
			DiskUsage:   0,
			NetworkRX:   0,
			NetworkTX:   0,
		},
		DeviceCount:      uint32(len(devices)),
		DeviceMemtotalGB: totalMem,
		TotalTFLOPS:      0,
		DevicesInfo:      devices,
	}
}

// assignmentLoop periodically asks the API server's catalog endpoint which
// model this device's hardware is eligible for, and downloads and loads it
// into the local inference engine when it changes.
func assignmentLoop(ctx context.Context, serverURL string, caps *hardware.Capabilities, osType store.OSType, host *engine.Host, eng *engine.Engine, l *logger.Logger) {
	if len(hardware.DetectGPUs()) == 0 {
		l.Info("no GPUs detected, skipping model assignment")
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	loaded := ""
	for {
		checkAssignment(ctx, serverURL, caps, osType, host, eng, l, &loaded)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type modelAssignment struct {
	ID          int32  `json:"id"`
	Name        string `json:"name"`
	EngineType  int16  `json:"engine_type"`
	DownloadURL string `json:"download_url"`
	Checksum    string `json:"checksum"`
}

func checkAssignment(ctx context.Context, serverURL string, caps *hardware.Capabilities, osType store.OSType, host *engine.Host, eng *engine.Engine, l *logger.Logger, loaded *string) {
	gpus := hardware.DetectGPUs()
	if len(gpus) == 0 {
		return
	}
	engineType := store.EngineTypeLlama

	q := url.Values{}
	q.Set("is_active", "true")
	q.Set("engine_type", strconv.Itoa(int(engineType)))
	q.Set("min_gpu_memory_gb", strconv.Itoa(int(gpus[0].MemTotalGB)))

	reqURL := fmt.Sprintf("%s/v1/models?%s", serverURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		l.Error("failed to build catalog request", "error", err)
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		l.Warn("catalog lookup failed", "error", err)
		return
	}
	defer resp.Body.Close()

	var models []modelAssignment
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil || len(models) == 0 {
		return
	}
	assignment := models[0]
	if assignment.Name == *loaded {
		return
	}

	modelPath := filepath.Join(os.TempDir(), "gpufabric-models", assignment.Name)
	dl := downloader.New(downloader.Config{
		URL:        assignment.DownloadURL,
		OutputPath: modelPath,
		Checksum:   assignment.Checksum,
		Resume:     true,
	}, l, nil)

	if err := dl.Download(ctx); err != nil {
		l.Error("model download failed", "model", assignment.Name, "error", err)
		return
	}

	svc, err := host.Get(engineName(store.EngineType(assignment.EngineType)))
	if err != nil {
		l.Error("engine plugin unavailable", "error", err)
		return
	}

	if err := eng.LoadModel(ctx, svc, assignment.Name, modelPath, 4096, 0); err != nil {
		l.Error("model load failed", "model", assignment.Name, "error", err)
		return
	}

	*loaded = assignment.Name
	l.Info("model loaded", "model", assignment.Name)
}

func engineName(t store.EngineType) string {
	switch t {
	case store.EngineTypeVLLM:
		return "engine-vllm"
	case store.EngineTypeOllama:
		return "engine-ollama"
	case store.EngineTypeLlama:
		return "engine-llama"
	default:
		return "engine-llama"
	}
}
