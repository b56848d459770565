package cmds

import (
	"encoding/json"
	"fmt"

	toolpersona "github.com/go-go-golems/careertwin/pkg/inference/tools/persona"
	"github.com/go-go-golems/careertwin/pkg/notify"
	"github.com/spf13/cobra"
)

func NewToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool schemas offered to the model as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := toolpersona.NewRegistry(notify.NopNotifier{})
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(registry.ListTools(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
