package command

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sfsb-go/internal/cli/output"
	"github.com/yndnr/sfsb-go/internal/core/service"
	"github.com/yndnr/sfsb-go/internal/core/settings"
	"github.com/yndnr/sfsb-go/internal/infra/buildinfo"
	"github.com/yndnr/sfsb-go/internal/storage"
	"github.com/yndnr/sfsb-go/internal/storage/codec"
	"github.com/yndnr/sfsb-go/internal/telemetry/logger"
	"github.com/yndnr/sfsb-go/pkg/clock"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "sfsbctl",
		Usage:   "Inspect and maintain a stateful session bean directory",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ListCommand(),
			ShowCommand(),
			GCCommand(),
			VerifyCommand(),
			DaemonCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	def := settings.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Session directory",
			EnvVars: []string{"SFSB_DIR"},
			Value:   def.SessionSavePath,
		},
		&cli.StringFlag{
			Name:    "prefix",
			Usage:   "Session file prefix",
			EnvVars: []string{"SFSB_PREFIX"},
			Value:   def.SessionFilePrefix,
		},
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "Storage backend: file, badger",
			EnvVars: []string{"SFSB_BACKEND"},
			Value:   def.Backend,
		},
		&cli.StringFlag{
			Name:    "key",
			Usage:   "Encryption key of the session files",
			EnvVars: []string{"SFSB_KEY"},
		},
		&cli.StringFlag{
			Name:    "cipher",
			Usage:   "Cipher used with --key: aes-gcm, chacha20",
			EnvVars: []string{"SFSB_CIPHER"},
			Value:   def.Cipher,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// maxAgeFlag is shared by the commands that judge expiry.
func maxAgeFlag() *cli.DurationFlag {
	return &cli.DurationFlag{
		Name:  "max-age",
		Usage: "Maximum age of sessions whose file records no expiry",
		Value: settings.Default().MaximumAge(),
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Dir     string
	Prefix  string
	Backend string
	Key     string
	Cipher  string
	Output  string
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Dir:     c.String("dir"),
		Prefix:  c.String("prefix"),
		Backend: c.String("backend"),
		Key:     c.String("key"),
		Cipher:  c.String("cipher"),
		Output:  c.String("output"),
		Verbose: c.Bool("verbose"),
	}
}

// workspace is an opened session directory.
type workspace struct {
	store  storage.Store
	codec  *codec.Codec
	logger *slog.Logger
	clock  clock.Clock
}

func (ws *workspace) Close() error {
	return ws.store.Close()
}

// openWorkspace opens the store described by the global flags. Unlike the
// daemon it never creates a missing file-backend directory.
func openWorkspace(c *cli.Context) (*workspace, error) {
	flags := ParseGlobalFlags(c)

	st := settings.Default()
	st.SessionSavePath = flags.Dir
	st.SessionFilePrefix = flags.Prefix
	st.Backend = flags.Backend
	st.EncryptionKey = flags.Key
	st.Cipher = flags.Cipher
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if st.Backend == settings.BackendFile {
		if _, err := os.Stat(st.SessionSavePath); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("session directory %s does not exist", st.SessionSavePath)
			}
			return nil, err
		}
	}

	level := "warn"
	if flags.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "text", Output: c.App.ErrWriter})
	if err != nil {
		return nil, err
	}

	cdc, err := service.NewCodec(st)
	if err != nil {
		return nil, err
	}
	clk := clock.Real()
	store, err := service.OpenStore(st, clk, log)
	if err != nil {
		return nil, err
	}
	return &workspace{store: store, codec: cdc, logger: log, clock: clk}, nil
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(c.App.Writer, data)
}

// inspection is what the frame header says about one stored entry.
type inspection struct {
	ID          string    `json:"id" yaml:"id"`
	Size        int64     `json:"size" yaml:"size"`
	Modified    time.Time `json:"modified" yaml:"modified"`
	CreatedAt   time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero" yaml:"expires_at,omitempty"`
	Compression string    `json:"compression,omitempty" yaml:"compression,omitempty"`
	Encrypted   bool      `json:"encrypted" yaml:"encrypted"`
	State       string    `json:"state" yaml:"state"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Entry states reported by list and gc.
const (
	StateOK         = "ok"
	StateExpired    = "expired"
	StateCorrupt    = "corrupt"
	StateUnreadable = "unreadable"
)

// inspect classifies ent from its header the way the collector does: an
// unset expiry falls back to the modification time plus maxAge.
func (ws *workspace) inspect(ent storage.Entry, maxAge time.Duration, now time.Time) inspection {
	in := inspection{ID: ent.ID, Size: ent.Size, Modified: ent.ModTime}
	blob, err := ws.store.Read(ent.ID)
	if err != nil {
		in.State, in.Error = StateUnreadable, err.Error()
		return in
	}
	hdr, err := ws.codec.DecodeHeader(blob)
	if err != nil {
		in.State, in.Error = StateCorrupt, err.Error()
		return in
	}
	in.CreatedAt = hdr.CreatedAt
	in.ExpiresAt = hdr.ExpiresAt
	in.Compression = hdr.Compression.String()
	in.Encrypted = hdr.Encrypted

	expiresAt := hdr.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = ent.ModTime.Add(maxAge)
	}
	in.State = StateOK
	if now.After(expiresAt) {
		in.State = StateExpired
	}
	return in
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
