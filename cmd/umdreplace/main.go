package main

import (
	"fmt"
	"github.com/davejbax/go-umdreplace"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newApp().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "umdreplace <imageName> <pathInImage> <replacementFile>",
		Short: "Replace a file inside a PSP UMD or PS2 DVD image",
		Long: `Replace a file inside a PSP UMD or PS2 DVD image.

If the replacement needs a different number of sectors than the file it replaces, the image is rebuilt next to the
original and every sector reference after the file is moved, so the image must live in a writable directory.`,
		Example: `  $ umdreplace game.iso /PSP_GAME/USRDIR/DATA.BIN DATA.BIN
  $ umdreplace game.iso PSP_GAME\SYSDIR\EBOOT.BIN EBOOT.BIN --verify`,
		Version:       version,
		Args:          cobra.ExactArgs(3),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return processGlobalFlags(cmd)
		},
		RunE: runReplace,
	}

	cmd.Flags().Bool("verify", false, "Read the replaced file back out of the image and compare it with the replacement")
	cmd.Flags().String("temp-name", umdreplace.DefaultTempName, "File name of the temporary image built next to the original")
	cmd.Flags().Int64("chunk-sectors", umdreplace.DefaultChunkSectors, "Number of sectors copied at once while rebuilding")
	cmd.PersistentFlags().String("log-level", "", "Set the logging level [trace, debug, info, warn, error]")
	cmd.PersistentFlags().String("log-format", "text", "Set the logging format [text, json]")

	return cmd
}

func processGlobalFlags(cmd *cobra.Command) error {
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		lvl, err := logrus.ParseLevel(l)
		if err != nil {
			return err
		}
		logrus.SetLevel(lvl)
	}

	logFormat, _ := cmd.Flags().GetString("log-format")
	switch logFormat {
	case "json":
		logrus.SetFormatter(new(logrus.JSONFormatter))
	case "text":
		// logrus uses the text format by default
	default:
		return fmt.Errorf("unsupported log-format: %q", logFormat)
	}

	return nil
}

func runReplace(cmd *cobra.Command, args []string) error {
	// Arguments have been validated by now: any further error is not a usage error
	cmd.SilenceUsage = true

	verify, _ := cmd.Flags().GetBool("verify")
	tempName, _ := cmd.Flags().GetString("temp-name")
	chunkSectors, _ := cmd.Flags().GetInt64("chunk-sectors")

	fmt.Fprintf(cmd.ErrOrStderr(), "UMD/PS2 ISO9660 file replacer %s\n\n", version)

	r, err := umdreplace.NewReplacer(umdreplace.Options{
		TempName:     tempName,
		ChunkSectors: chunkSectors,
		Verify:       verify,
		Logger:       logrus.StandardLogger(),
	})
	if err != nil {
		return err
	}

	if _, err := r.Replace(args[0], args[1], args[2]); err != nil {
		return err
	}

	logrus.Info("done")
	return nil
}
