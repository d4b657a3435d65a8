package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/canopydb/canopy/nestedset"
	"github.com/canopydb/canopy/util/cliutil"

	_ "github.com/joho/godotenv/autoload"
	_ "go.uber.org/automaxprocs"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

var log = slog.Default().With("system", "canopy")

func main() {
	if err := run(os.Args); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "canopy",
		Usage:   "nested-set tree store CLI",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db-url",
			Value:   "sqlite://./data/canopy.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:  "table",
			Usage: "table holding the nested-set records",
			Value: "nodes",
		},
		&cli.StringFlag{
			Name:  "group-column",
			Usage: "forest partition column (requires --group)",
		},
		&cli.StringFlag{
			Name:  "group",
			Usage: "forest partition value (requires --group-column)",
		},
		&cli.StringFlag{
			Name:  "root-name",
			Value: "root",
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"CANOPY_LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		initCmd,
		addCmd,
		moveCmd,
		shiftCmd,
		rmCmd,
		showCmd,
		lsCmd,
	}

	return app.Run(args)
}

func setup(cctx *cli.Context) (*nestedset.Tree, *nestedset.Gormstore, error) {
	if _, err := cliutil.SetupSlog(cctx.String("log-level")); err != nil {
		return nil, nil, err
	}

	db, err := cliutil.SetupDatabase(cctx.String("db-url"), 10)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	cfg := nestedset.DefaultConfig()
	cfg.Table = cctx.String("table")
	cfg.RootName = cctx.String("root-name")
	cfg.GroupColumn = cctx.String("group-column")
	cfg.GroupValue = cctx.String("group")

	store, err := nestedset.NewGormstore(db, cfg)
	if err != nil {
		return nil, nil, err
	}
	tree, err := nestedset.New(store, cfg)
	if err != nil {
		return nil, nil, err
	}
	return tree, store, nil
}

// parentRef treats an empty name as the root.
func parentRef(name string) nestedset.NodeRef {
	if name == "" {
		return nestedset.RootRef()
	}
	return nestedset.ByName(name)
}

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "create the table and the root node",
	Action: func(cctx *cli.Context) error {
		tree, store, err := setup(cctx)
		if err != nil {
			return err
		}
		if err := store.EnsureSchema(cctx.Context); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		root, err := tree.Root(cctx.Context)
		if err != nil {
			return err
		}
		log.Info("tree initialized", "root", root.Name, "id", root.ID)
		return nil
	},
}

var addCmd = &cli.Command{
	Name:      "add",
	Usage:     "insert a new leaf node",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "parent",
			Usage: "parent node name (default: root)",
		},
		&cli.IntFlag{
			Name:  "pos",
			Usage: "0-based position among siblings; out of range means last",
			Value: 1 << 30,
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("add takes exactly one node name")
		}
		tree, _, err := setup(cctx)
		if err != nil {
			return err
		}
		n, err := tree.Insert(cctx.Context, cctx.Args().First(), parentRef(cctx.String("parent")), cctx.Int("pos"))
		if err != nil {
			return err
		}
		log.Info("node inserted", "name", n.Name, "id", n.ID, "left", n.Left, "right", n.Right)
		return nil
	},
}

var moveCmd = &cli.Command{
	Name:      "move",
	Usage:     "move a subtree under a new parent (as first child)",
	ArgsUsage: "<name> <new-parent>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("move takes a node name and a new parent name")
		}
		tree, _, err := setup(cctx)
		if err != nil {
			return err
		}
		moved, err := tree.Move(cctx.Context, nestedset.ByName(cctx.Args().Get(0)), nestedset.ByName(cctx.Args().Get(1)))
		if err != nil {
			return err
		}
		if !moved {
			log.Info("already under that parent, nothing to do")
		}
		return nil
	},
}

var shiftCmd = &cli.Command{
	Name:      "shift",
	Usage:     "swap a node with its previous or next sibling",
	ArgsUsage: "<name> left|right",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("shift takes a node name and a direction")
		}
		tree, _, err := setup(cctx)
		if err != nil {
			return err
		}
		ref := nestedset.ByName(cctx.Args().Get(0))
		var moved bool
		switch cctx.Args().Get(1) {
		case "left":
			moved, err = tree.MoveLeft(cctx.Context, ref)
		case "right":
			moved, err = tree.MoveRight(cctx.Context, ref)
		default:
			return fmt.Errorf("direction must be left or right")
		}
		if err != nil {
			return err
		}
		if !moved {
			log.Info("node is already at the edge, nothing to do")
		}
		return nil
	},
}

var rmCmd = &cli.Command{
	Name:      "rm",
	Usage:     "delete a node",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "keep-children",
			Usage: "promote children one level instead of deleting the subtree",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("rm takes exactly one node name")
		}
		tree, _, err := setup(cctx)
		if err != nil {
			return err
		}
		policy := nestedset.DeleteSubtree
		if cctx.Bool("keep-children") {
			policy = nestedset.PromoteChildren
		}
		removed, err := tree.Delete(cctx.Context, nestedset.ByName(cctx.Args().First()), policy)
		if err != nil {
			return err
		}
		log.Info("deleted", "rows", removed)
		return nil
	},
}

var showCmd = &cli.Command{
	Name:  "show",
	Usage: "print the whole forest",
	Action: func(cctx *cli.Context) error {
		tree, _, err := setup(cctx)
		if err != nil {
			return err
		}
		nodes, err := tree.All(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Print(renderForest(nodes))
		return nil
	},
}

var lsCmd = &cli.Command{
	Name:      "ls",
	Usage:     "list the immediate children of a node",
	ArgsUsage: "<name>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("ls takes exactly one node name")
		}
		tree, _, err := setup(cctx)
		if err != nil {
			return err
		}
		kids, err := tree.Children(cctx.Context, nestedset.ByName(cctx.Args().First()))
		if err != nil {
			return err
		}
		for _, nd := range kids[1:] {
			fmt.Printf("%d\t%s\t(%d,%d)\n", nd.Node.ID, nd.Node.Name, nd.Node.Left, nd.Node.Right)
		}
		return nil
	},
}

// renderForest draws a preordered node dump as a tree. A stack of open
// branches keyed by right boundary tracks where each node attaches.
func renderForest(nodes []nestedset.Node) string {
	out := treeprint.New()

	type open struct {
		right  int64
		branch treeprint.Tree
	}
	var stack []open

	for _, n := range nodes {
		for len(stack) > 0 && stack[len(stack)-1].right < n.Left {
			stack = stack[:len(stack)-1]
		}
		at := out
		if len(stack) > 0 {
			at = stack[len(stack)-1].branch
		}
		label := fmt.Sprintf("%s (%d,%d)", n.Name, n.Left, n.Right)
		br := at.AddBranch(label)
		stack = append(stack, open{right: n.Right, branch: br})
	}
	return out.String()
}
