package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"plugchain/internal/config"
	"plugchain/internal/plugin"
	"plugchain/internal/sandbox"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Compile the manifest plugins and describe them",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().String("manifest", "", "path to plugchain.toml (default: search upward from the working directory)")
	inspectCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type pluginInfo struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Digest  string   `json:"digest"`
	Size    int      `json:"size"`
	Config  string   `json:"config,omitempty"`
	Exports []string `json:"exports"`
	Imports []string `json:"imports"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	switch format {
	case "pretty", "json":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}

	sess, err := openSession(cmd, 0)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer func() {
		if err := sess.close(ctx); err != nil {
			sess.log.WithError(err).Warn("failed to release plugin modules")
		}
	}()

	manifest, err := sess.manifest(cmd)
	if err != nil {
		return err
	}
	chain, err := config.BuildChain(ctx, manifest, sess.cache, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := chain.Release(ctx); err != nil {
			sess.log.WithError(err).Warn("failed to release chain")
		}
	}()

	infos := make([]pluginInfo, len(chain.Refs))
	for i, ref := range chain.Refs {
		infos[i] = describePlugin(manifest.PluginPath(manifest.Plugins[i]), ref)
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	colored, err := useColor(cmd)
	if err != nil {
		return err
	}
	renderPluginsPretty(cmd.OutOrStdout(), infos, colored)
	return nil
}

func describePlugin(path string, ref plugin.Reference) pluginInfo {
	info := pluginInfo{
		Name:    ref.Name(),
		Path:    path,
		Digest:  ref.Module.Digest().String(),
		Size:    ref.Module.Size(),
		Exports: []string{},
		Imports: []string{},
	}
	if !ref.Config.IsNull() {
		info.Config = ref.Config.String()
	}
	if mod, ok := ref.Module.Artifact().(*sandbox.Module); ok {
		info.Exports = mod.Exports()
		info.Imports = mod.Imports()
	}
	return info
}

func renderPluginsPretty(out io.Writer, infos []pluginInfo, colored bool) {
	name := color.New(color.FgCyan, color.Bold)
	if colored {
		name.EnableColor()
	} else {
		name.DisableColor()
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "no plugins configured")
		return
	}
	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%d. %s\n", i+1, name.Sprint(info.Name))
		fmt.Fprintf(out, "   path:    %s\n", info.Path)
		fmt.Fprintf(out, "   digest:  %s\n", info.Digest)
		fmt.Fprintf(out, "   size:    %d bytes\n", info.Size)
		if info.Config != "" {
			fmt.Fprintf(out, "   config:  %s\n", info.Config)
		}
		fmt.Fprintf(out, "   exports: %s\n", strings.Join(info.Exports, ", "))
		if len(info.Imports) > 0 {
			fmt.Fprintf(out, "   imports: %s\n", strings.Join(info.Imports, ", "))
		}
	}
}
