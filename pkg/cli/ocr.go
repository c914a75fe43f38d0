package cli

import (
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/webcheck-runner/pkg/ocr"
)

var ocrFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "tesseract",
		Usage:   "tesseract executable",
		EnvVars: []string{"TESSERACT"},
	},
	&cli.StringFlag{
		Name:  "ocr-lang",
		Usage: "tesseract language (default eng)",
	},
}

var ocrCommand = &cli.Command{
	Name:  "ocr",
	Usage: "Check the OCR engine and tune captcha preprocessing",
	Subcommands: []*cli.Command{
		{
			Name:  "check",
			Usage: "Report whether tesseract is installed and its version",
			Flags: ocrFlags,
			Action: func(c *cli.Context) error {
				engine, err := ocrEngine(c)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				version, err := engine.Version(c.Context)
				if err != nil {
					fmt.Fprintf(c.App.Writer, "%s✗%s %v\n", color(colorRed), color(colorReset), err)
					return cli.Exit("", 1)
				}
				fmt.Fprintf(c.App.Writer, "%s✓%s %s (%s, language %s)\n",
					color(colorGreen), color(colorReset), version, engine.Binary, engine.Language)
				return nil
			},
		},
		{
			Name:      "recognize",
			Usage:     "Recognize the text of a saved captcha image",
			ArgsUsage: "<image>",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:  "mode",
					Usage: "Preprocessing: " + joinModes(),
					Value: string(ocr.ModeDefault),
				},
				&cli.StringFlag{
					Name:  "save-preprocessed",
					Usage: "Write the preprocessed image to this path",
				},
			}, ocrFlags...),
			Action: recognizeAction,
		},
	},
}

func recognizeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one image is required", 1)
	}
	mode, err := parseMode(c.String("mode"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	img, err := imaging.Open(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("open image: %v", err), 1)
	}

	if path := c.String("save-preprocessed"); path != "" {
		if err := imaging.Save(ocr.Preprocess(img, mode), path); err != nil {
			return cli.Exit(fmt.Sprintf("save preprocessed image: %v", err), 1)
		}
	}

	engine, err := ocrEngine(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	text, err := ocr.NewSolver(engine, ocr.DefaultInvalidMatcher()).RecognizeImage(c.Context, img, mode)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintln(c.App.Writer, text)
	return nil
}

// ocrEngine builds tesseract from flags, falling back to the workspace config.
func ocrEngine(c *cli.Context) (*ocr.Tesseract, error) {
	cfg, err := loadWorkspaceConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return ocr.NewTesseract(pickString(c, "tesseract", cfg.OCR.Tesseract), pickString(c, "ocr-lang", cfg.OCR.Lang)), nil
}

func parseMode(s string) (ocr.Mode, error) {
	for _, m := range ocr.Modes {
		if string(m) == strings.ToLower(s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (want %s)", s, joinModes())
}

func joinModes() string {
	names := make([]string, len(ocr.Modes))
	for i, m := range ocr.Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
