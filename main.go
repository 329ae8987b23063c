package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"gopkg.in/yaml.v3"

	"dx7bridge/config"
	"dx7bridge/library"
	"dx7bridge/router"
	"dx7bridge/sysex"
)

const version = "v0.3.0"

const (
	statsInterval = time.Minute
	chordHold     = 2 * time.Second
)

var (
	configPath  string
	outPort     string
	virtualPort string
	channel     int
	libraryDir  string
)

var rootCmd = &cobra.Command{
	Use:   "dx7bridge",
	Short: "Yamaha DX7 MIDI bridge and SysEx librarian",
	Long: `dx7bridge forwards everything sent to a virtual MIDI input to the DX7 output,
reassembling running status and SysEx on the way, and manages libraries of DX7
voice and bank dumps.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of dx7bridge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("dx7bridge", version)
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI inputs and outputs",
	RunE:  runPorts,
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Forward the virtual input to the hardware output until interrupted",
	RunE:  runBridge,
}

var listCmd = &cobra.Command{
	Use:   "list [dir]",
	Short: "List the banks and patches of a SysEx library",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.syx>",
	Short: "Show the SysEx messages of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var sendCmd = &cobra.Command{
	Use:   "send <file.syx> [patch...]",
	Short: "Send patches of a file to the DX7 (all of them if none are given)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

var notesCmd = &cobra.Command{
	Use:   "notes [notes]",
	Short: `Play notes like "C4 E4 G4 r C5", or the test notes when none are given`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNotes,
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Read the DX7 edit buffer and print it as JSON",
	RunE:  runGet,
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Send a voice read as JSON from stdin to the DX7 edit buffer",
	RunE:  runSet,
}

var browseCmd = &cobra.Command{
	Use:   "browse [dir]",
	Short: "Browse a SysEx library and audition patches",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBrowse,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the DX7 tools over MCP on stdio",
	RunE:  runMCPCommand,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE:  runConfig,
}

var (
	dumpFlag bool
	saveFlag bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default <user config dir>/dx7bridge/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outPort, "out", "", "hardware output name fragment (use 'dx7bridge ports' to list them)")
	rootCmd.PersistentFlags().StringVar(&virtualPort, "virtual", "", "name of the virtual input port")
	rootCmd.PersistentFlags().IntVar(&channel, "channel", -1, "DX7 channel 1-16")
	rootCmd.PersistentFlags().StringVar(&libraryDir, "library", "", "SysEx library directory")

	inspectCmd.Flags().BoolVar(&dumpFlag, "dump", false, "hex dump every message")
	configCmd.Flags().BoolVar(&saveFlag, "save", false, "write the effective configuration back to the config file")

	rootCmd.AddCommand(versionCmd, portsCmd, bridgeCmd, listCmd, inspectCmd, sendCmd,
		notesCmd, getCmd, setCmd, browseCmd, mcpCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the command line overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if outPort != "" {
		cfg.HardwarePort = outPort
	}
	if virtualPort != "" {
		cfg.VirtualPort = virtualPort
	}
	if libraryDir != "" {
		cfg.LibraryDir = libraryDir
	}
	if channel != -1 {
		if channel < 1 || channel > 16 {
			return nil, fmt.Errorf("channel must be in range 1–16, got %d", channel)
		}
		cfg.Channel = uint8(channel - 1)
	}
	return cfg, nil
}

// setup loads the config and starts logging. The returned function releases
// the log file and the MIDI driver.
func setup(console bool) (*config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logs, err := setupLogging(cfg.Logs, console)
	if err != nil {
		return nil, nil, err
	}
	return cfg, func() {
		router.CloseDriver()
		logs.Close()
	}, nil
}

func openOut(cfg *config.Config) (*router.HardwareOut, error) {
	out := router.NewHardwareOut()
	if err := out.OpenPort(cfg.HardwarePort); err != nil {
		return nil, fmt.Errorf("could not open DX7 MIDI out port: %w", err)
	}
	return out, nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	defer router.CloseDriver()

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "MIDI outputs:")
	for i, name := range router.OutPortNames() {
		fmt.Fprintf(w, "  %d: %s\n", i, name)
	}
	fmt.Fprintln(w, "MIDI inputs:")
	for i, name := range router.InPortNames() {
		fmt.Fprintf(w, "  %d: %s\n", i, name)
	}
	return nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := setup(true)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := openOut(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	in, err := router.OpenVirtualIn(cfg.VirtualPort)
	if err != nil {
		return err
	}

	b := router.NewBridge(out, router.Options{
		QueueSize:    cfg.QueueSize,
		CarryPartial: cfg.CarryPartial,
		MaxSysEx:     cfg.MaxSysEx,
	})
	if err := b.Start(in); err != nil {
		b.Close()
		return err
	}
	log.Printf("[bridge] %q -> %s, press Ctrl-C to stop", cfg.VirtualPort, out.Name())

	ctx := cmd.Context()
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return b.Close()
		case <-ticker.C:
			log.Printf("[bridge] %s", b.Stats())
		}
	}
}

func openLibrary(cfg *config.Config, args []string) (*library.Library, error) {
	dir := cfg.LibraryDir
	if len(args) > 0 {
		dir = args[0]
	}
	return library.Open(dir)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := setup(false)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := openLibrary(cfg, args)
	if err != nil {
		return err
	}
	printLibrary(cmd.OutOrStdout(), lib)
	return nil
}

func printLibrary(w io.Writer, lib *library.Library) {
	banks := lib.Banks()
	if len(banks) == 0 {
		fmt.Fprintf(w, "No .syx files found in %s.\n", lib.Root())
		return
	}
	for i, e := range banks {
		fmt.Fprintf(w, "%d: %s (%d patches)\n", i, e.Path, len(e.Patches))
		for j, p := range e.Patches {
			fmt.Fprintf(w, "    %2d  %-32s  %s\n", j, p.Name, p.Format)
		}
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	inspect(cmd.OutOrStdout(), data, args[0], dumpFlag)
	return nil
}

// selectPatches picks patches by index; no indexes selects all of them.
func selectPatches(bank sysex.Bank, indexes []string) ([]sysex.Patch, error) {
	if len(indexes) == 0 {
		return bank.Patches, nil
	}
	patches := make([]sysex.Patch, 0, len(indexes))
	for _, s := range indexes {
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid patch index %q: %w", s, err)
		}
		if i < 0 || i >= len(bank.Patches) {
			return nil, fmt.Errorf("%w: %s has %d patches, asked for %d", library.ErrNoPatch, bank.Origin, len(bank.Patches), i)
		}
		patches = append(patches, bank.Patches[i])
	}
	return patches, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := setup(true)
	if err != nil {
		return err
	}
	defer cleanup()

	bank, err := library.LoadFile(args[0])
	if err != nil {
		return err
	}
	patches, err := selectPatches(bank, args[1:])
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return fmt.Errorf("%s holds no SysEx messages", args[0])
	}

	out, err := openOut(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	dx := NewDX7(out, cfg.Channel)
	if err := dx.SendPatches(cmd.Context(), patches, cfg.SendDelay); err != nil {
		return err
	}
	log.Printf("Sent %d patches from %s to %s", len(patches), bank.Origin, out.Name())
	return nil
}

func runNotes(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := setup(true)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := openOut(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	dx := NewDX7(out, cfg.Channel)
	if len(args) == 0 {
		return playTestNotes(cmd.Context(), dx)
	}
	return playNotesFromText(cmd.Context(), dx, args[0], defaultTiming)
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := setup(false)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := openOut(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	in, err := router.FindInPort(cfg.HardwarePort)
	if err != nil {
		return fmt.Errorf("could not find DX7 MIDI in port: %w", err)
	}
	defer in.Close()

	return getVoice(cmd.Context(), NewDX7(out, cfg.Channel), in, cmd.OutOrStdout())
}

func runSet(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := setup(true)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := openOut(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	v, err := setVoice(NewDX7(out, cfg.Channel), cmd.InOrStdin())
	if err != nil {
		return err
	}
	log.Printf("Sent voice %q on channel %d", v.Name, cfg.Channel+1)
	return nil
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := setup(false)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := openLibrary(cfg, args)
	if err != nil {
		return err
	}

	// Browsing works without hardware; sends then report the error.
	out := router.NewHardwareOut()
	if err := out.OpenPort(cfg.HardwarePort); err != nil {
		log.Printf("[browse] no DX7 output: %v", err)
	}
	defer out.Close()

	return runTUI(lib, NewDX7(out, cfg.Channel), out.Name())
}

func runMCPCommand(cmd *cobra.Command, args []string) error {
	// stdout carries the MCP protocol.
	cfg, cleanup, err := setup(false)
	if err != nil {
		return err
	}
	defer cleanup()

	t := &mcpTools{chordHold: chordHold, timing: defaultTiming}
	if lib, err := library.Open(cfg.LibraryDir); err != nil {
		log.Printf("[mcp] library unavailable: %v", err)
	} else {
		t.lib = lib
	}

	out := router.NewHardwareOut()
	if err := out.OpenPort(cfg.HardwarePort); err != nil {
		log.Printf("[mcp] no DX7 output: %v", err)
	}
	defer out.Close()
	t.dx = NewDX7(out, cfg.Channel)

	return runMCP(t)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if saveFlag {
		if configPath != "" {
			err = cfg.SaveFile(configPath)
		} else {
			err = cfg.Save()
		}
		if err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
