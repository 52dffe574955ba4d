// Command render is the embedder demo SPEC_FULL.md §6 calls for: it reads
// an HTML-ish fixture file through internal/htmlfixture, feeds it to a
// pkg/engine.Engine, and prints a textual dump of the resulting
// paint.DisplayList as a stand-in for a real GPU-backed paint consumer.
//
// Grounded on the teacher's cmd/l14show (a small, flag-free main reading
// an input file and a viewport size off argv) but adopting
// github.com/urfave/cli/v3 for flag parsing, the way rupor-github-fb2cng's
// cmd/fbc/main.go structures a single-purpose CLI tool around a
// cli.Command rather than hand-rolled argv indexing.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"corebrowser/internal/htmlfixture"
	"corebrowser/pkg/dom"
	"corebrowser/pkg/engine"
	"corebrowser/pkg/paint"
	"corebrowser/pkg/query"
	"corebrowser/pkg/style"
	"corebrowser/pkg/text"
)

// defaultWidthPx and defaultHeightPx are the --width/--height flag defaults.
// --config's viewport only takes effect when the corresponding flag was left
// at this default, so an explicit --width/--height on argv always wins over
// the config file.
const defaultWidthPx, defaultHeightPx = 800, 600

func main() {
	app := &cli.Command{
		Name:  "render",
		Usage: "parse an HTML-ish fixture, lay it out, and dump its display list",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "width", Value: defaultWidthPx, Usage: "viewport width in CSS px"},
			&cli.Float64Flag{Name: "height", Value: defaultHeightPx, Usage: "viewport height in CSS px"},
			&cli.StringFlag{Name: "font", Usage: "path to a TTF/OTF used for text measurement (omit to use the built-in heuristic)"},
			&cli.StringFlag{Name: "bold-font", Usage: "path to a bold-weight TTF/OTF; falls back to --font if omitted"},
			&cli.StringFlag{Name: "config", Usage: "path to a YAML file overriding viewport/fonts/UA stylesheet (see cmd/render/config.go)"},
		},
		ArgsUsage: "FIXTURE.html",
		Action:    run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().Get(0)
	if path == "" {
		return fmt.Errorf("no fixture file given, usage: render FIXTURE.html")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		log = zap.NewNop()
	}
	defer log.Sync()

	uaSheet := defaultUserAgentStylesheet()
	widthPx, heightPx := cmd.Float64("width"), cmd.Float64("height")
	fontPath, boldPath := cmd.String("font"), cmd.String("bold-font")

	if cfgPath := cmd.String("config"); cfgPath != "" {
		cfg, err := loadFixtureConfig(cfgPath)
		if err != nil {
			return err
		}
		if widthPx == defaultWidthPx && cfg.Viewport.WidthPx > 0 {
			widthPx = cfg.Viewport.WidthPx
		}
		if heightPx == defaultHeightPx && cfg.Viewport.HeightPx > 0 {
			heightPx = cfg.Viewport.HeightPx
		}
		if fontPath == "" && cfg.Fonts.Regular != "" {
			fontPath = cfg.Fonts.Regular
		}
		if boldPath == "" && cfg.Fonts.Bold != "" {
			boldPath = cfg.Fonts.Bold
		}
		if sheet, ok := cfg.stylesheet(); ok {
			uaSheet = sheet
		}
	}

	eng := engine.New(log)
	eng.Styles.SetUserAgentStylesheet(uaSheet)

	if fontPath != "" {
		if boldPath == "" {
			boldPath = fontPath
		}
		provider := text.NewMetricsProvider(text.FontSet{Regular: fontPath, Bold: boldPath}, log.Named("text"))
		eng.SetBaselineProvider(provider, provider)
	}

	muts, err := htmlfixture.Parse(string(raw), dom.RootKey, eng.Dom)
	if err != nil {
		return fmt.Errorf("parsing fixture: %w", err)
	}
	if err := eng.Dom.ApplyBatch(muts); err != nil {
		return fmt.Errorf("applying fixture mutations: %w", err)
	}

	eng.SetViewport(widthPx, heightPx)

	qctx := query.NewContext(eng.DB)
	list, err := eng.Paint(qctx, dom.RootKey)
	if err != nil {
		return fmt.Errorf("paint: %w", err)
	}

	dumpDisplayList(os.Stdout, list)
	return nil
}

func defaultUserAgentStylesheet() style.Stylesheet {
	rule := func(tag, display string, extra ...style.Declaration) style.Rule {
		decls := append([]style.Declaration{{Property: "display", Value: display}}, extra...)
		return style.Rule{
			Selector:     style.Selector{Parts: []style.SelectorPart{{Element: tag}}},
			Declarations: decls,
		}
	}
	return style.Stylesheet{Rules: []style.Rule{
		rule("body", "block", style.Declaration{Property: "margin", Value: "8px"}),
		rule("div", "block"),
		rule("p", "block"),
		rule("span", "inline"),
		rule("a", "inline"),
	}}
}

func dumpDisplayList(w *os.File, list *paint.DisplayList) {
	fmt.Fprintf(w, "display list (generation %d, %d items)\n", list.Generation, len(list.Items))
	for i, item := range list.Items {
		fmt.Fprintf(w, "  [%4d] %-20s rect=%v", i, kindName(item.Kind), item.Rect)
		if item.HasNode {
			fmt.Fprintf(w, " node=%d", item.Node)
		}
		if item.Color != "" {
			fmt.Fprintf(w, " color=%s", item.Color)
		}
		if item.Text != "" {
			fmt.Fprintf(w, " text=%q", item.Text)
		}
		fmt.Fprintln(w)
	}
}

func kindName(k paint.DisplayItemKind) string {
	switch k {
	case paint.RectFill:
		return "RectFill"
	case paint.BorderEdge:
		return "BorderEdge"
	case paint.TextRun:
		return "TextRun"
	case paint.PushClip:
		return "PushClip"
	case paint.PopClip:
		return "PopClip"
	case paint.PushOpacity:
		return "PushOpacity"
	case paint.PopOpacity:
		return "PopOpacity"
	case paint.PushTransform:
		return "PushTransform"
	case paint.PopTransform:
		return "PopTransform"
	case paint.PushStackingContext:
		return "PushStackingContext"
	case paint.PopStackingContext:
		return "PopStackingContext"
	default:
		return "Unknown"
	}
}
