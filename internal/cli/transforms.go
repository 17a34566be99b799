package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/patchaug/pkg/transform"
)

// transformInfo is the --json form of one transformation.
type transformInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

// transformsCommand creates the transforms command.
func (c *CLI) transformsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transforms",
		Short: "List the available transformations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := listTransforms()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			fmt.Println(StyleTitle.Render("Transformations"))
			for _, info := range infos {
				name := info.Name
				if info.Default {
					name += " *"
				}
				printKeyValue(name, info.Description)
			}
			printDetail("* part of the default set")
			printNextStep("Use a subset", "patchaug augment img.png -t "+transform.NameColorJitter+","+transform.NamePosterize)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func listTransforms() []transformInfo {
	var defaults []string
	for _, t := range transform.Default() {
		defaults = append(defaults, t.Name())
	}
	var infos []transformInfo
	for _, name := range transform.Names() {
		t, _ := transform.Lookup(name)
		infos = append(infos, transformInfo{
			Name:        name,
			Description: transform.Describe(t),
			Default:     slices.Contains(defaults, name),
		})
	}
	return infos
}
