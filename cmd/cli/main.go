package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"gomulm/domain/contrast"
	"gomulm/internal/config"
	"gomulm/internal/container"
	"gomulm/internal/errors"
	"gomulm/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// options are the flags shared by every subcommand
type options struct {
	envFile      string
	design       string
	response     string
	contrasts    string
	identity     bool
	twoTailed    bool
	permutations int
	seed         int64
	workers      int
	family       string
	format       string
	out          string

	cfg *config.Config
	c   *container.Container
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "mulm-cli",
		Short: "Mass-univariate linear models: OLS fits, contrast t/F tests and maxT correction",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.loadConfig(cmd)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "Environment file with MULM_* settings")
	flags.StringVar(&opts.design, "design", "", "Design matrix X (CSV or XLSX, header row)")
	flags.StringVar(&opts.response, "response", "", "Response matrix Y (CSV or XLSX, header row)")
	flags.StringVar(&opts.contrasts, "contrast", "", `Contrast rows, e.g. "1,0,0;0,1,-1"`)
	flags.BoolVar(&opts.identity, "identity", false, "Test every regressor on its own (default when --contrast is empty)")
	flags.BoolVar(&opts.twoTailed, "two-tailed", true, "Two-tailed t-tests")
	flags.IntVar(&opts.permutations, "permutations", 1000, "Permutations for maxT")
	flags.Int64Var(&opts.seed, "seed", 42, "Seed of the permutation stream")
	flags.IntVar(&opts.workers, "workers", 4, "Concurrent refits")
	flags.StringVar(&opts.family, "family", "grid", "maxT family: grid or contrast")
	flags.StringVar(&opts.format, "format", "table", "Output format: table or json")
	flags.StringVar(&opts.out, "out", "", "Also write the main result grid to this CSV or XLSX file")

	rootCmd.AddCommand(
		newFitCmd(opts),
		newTTestCmd(opts),
		newFTestCmd(opts),
		newMaxTCmd(opts),
		newSplitCmd(opts),
		newAnalyzeCmd(opts),
	)
	return rootCmd
}

// loadConfig reads the environment, then lets explicitly set flags win
func (o *options) loadConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(o.envFile); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if changed("two-tailed") {
		cfg.Inference.TwoTailed = o.twoTailed
	}
	if changed("permutations") {
		cfg.MaxT.Permutations = o.permutations
	}
	if changed("seed") {
		cfg.MaxT.Seed = o.seed
	}
	if changed("workers") {
		cfg.MaxT.Workers = o.workers
	}
	if changed("family") {
		cfg.MaxT.Family = o.family
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if o.format != "table" && o.format != "json" {
		return errors.ConfigInvalid("format must be table or json")
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.c = c
	return nil
}

// readInputs loads the design and response matrices
func (o *options) readInputs(ctx context.Context) (*ports.NamedMatrix, *ports.NamedMatrix, error) {
	if o.design == "" || o.response == "" {
		return nil, nil, errors.InvalidInput("--design and --response are required")
	}
	x, err := o.c.Reader.ReadMatrix(ctx, o.design)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read design")
	}
	y, err := o.c.Reader.ReadMatrix(ctx, o.response)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read response")
	}
	return x, y, nil
}

// contrastMatrix parses --contrast, falling back to identity contrasts
func (o *options) contrastMatrix(design *ports.NamedMatrix) (*mat.Dense, []string, error) {
	_, p := design.Data.Dims()
	if o.identity || strings.TrimSpace(o.contrasts) == "" {
		return contrast.IdentityContrasts(p), design.Headers, nil
	}

	var rows [][]float64
	var labels []string
	for i, rowText := range strings.Split(o.contrasts, ";") {
		fields := splitList(rowText)
		row := make([]float64, len(fields))
		for j, field := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, errors.InvalidInput(fmt.Sprintf("contrast %d: bad weight %q", i, field))
			}
			row[j] = v
		}
		if len(row) != p {
			return nil, nil, errors.DimensionError("contrast %d has %d weights, design has %d columns", i, len(row), p)
		}
		rows = append(rows, row)
		labels = append(labels, "c"+strconv.Itoa(i))
	}

	c, err := contrast.NewMatrix(rows)
	if err != nil {
		return nil, nil, err
	}
	return c, labels, nil
}

// writeOut stores grid when --out is set
func (o *options) writeOut(ctx context.Context, grid ports.LabeledGrid) error {
	if o.out == "" {
		return nil
	}
	return o.c.Writer.WriteGrid(ctx, o.out, grid)
}
