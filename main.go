package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/sdk"
	"github.com/spf13/cobra"
)

var (
	configPath string
	archivist  *sdk.Archivist
)

var rootCmd = &cobra.Command{
	Use:   "archivist",
	Short: "Inspect the repository Archivist is configured for",
	Long: `archivist runs diagnostics against the configured content repository.

For the API server, run: go run ./cmd/api`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		archivist, err = sdk.New(configPath)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if archivist == nil {
			return nil
		}
		return archivist.Close()
	},
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Print the repository's advertised capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := archivist.Gateway(cmd.Context())
		if err != nil {
			return err
		}
		info := gw.RepositoryInfo()
		fmt.Printf("%s %s (%s)\n", info.ProductName, info.ProductVersion, info.ID)
		return printJSON(gw.Capabilities())
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the children of a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := archivist.Gateway(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		err = gw.WalkChildren(cmd.Context(), pathArg(args), 0, func(obj *cmis.Object) error {
			kind := "doc"
			if obj.IsFolder() {
				kind = "dir"
			}
			_, err := fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", kind, obj.ContentStreamLength,
				obj.LastModificationDate.Format("2006-01-02 15:04"), obj.Name)
			return err
		})
		if err != nil {
			return err
		}
		return w.Flush()
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print every folder and document below a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsys, err := archivist.AsFS(cmd.Context(), pathArg(args))
		if err != nil {
			return err
		}
		return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == "." {
				fmt.Println(pathArg(args))
				return nil
			}
			indent := strings.Repeat("  ", strings.Count(path, "/")+1)
			name := d.Name()
			if d.IsDir() {
				name += "/"
			}
			fmt.Printf("%s%s\n", indent, name)
			return nil
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Write a document's content to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsys, err := archivist.AsFS(cmd.Context(), "/")
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(fsys, strings.TrimPrefix(args[0], "/"))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var propsCmd = &cobra.Command{
	Use:   "props <path>",
	Short: "Print the properties of a folder or document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := archivist.Gateway(cmd.Context())
		if err != nil {
			return err
		}
		props, err := gw.Properties(cmd.Context(), args[0], "")
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\n", k, props[k])
		}
		return w.Flush()
	},
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Print the repository's type hierarchy",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := archivist.Gateway(cmd.Context())
		if err != nil {
			return err
		}
		trees, err := gw.TypeTree(cmd.Context())
		if err != nil {
			return err
		}
		printTypes(trees, 0)
		return nil
	},
}

var (
	notifySubject string
	notifyBody    string
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send the configured notification email",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := archivist.Notify(cmd.Context(), notifySubject, notifyBody)
		if err != nil {
			return err
		}
		fmt.Printf("sent %q to %s\n", email.Subject(), strings.Join(email.Recipients(), ", "))
		return nil
	},
}

func printTypes(trees []*cmis.TypeTree, depth int) {
	for _, tree := range trees {
		fmt.Printf("%s%s (%s)\n", strings.Repeat("  ", depth), tree.Type.ID, tree.Type.DisplayName)
		printTypes(tree.Children, depth+1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "/"
	}
	return args[0]
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/default.json", "configuration file path")
	notifyCmd.Flags().StringVar(&notifySubject, "subject", "", "override the configured subject")
	notifyCmd.Flags().StringVar(&notifyBody, "body", "", "override the configured message")

	rootCmd.AddCommand(capabilitiesCmd, lsCmd, treeCmd, catCmd, propsCmd, typesCmd, notifyCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
