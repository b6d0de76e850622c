package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/groundwork-io/groundwork/internal/ir"
)

var (
	inventoryGroup   string
	inventorySSHUser string
	inventoryList    bool
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Emit an Ansible dynamic inventory from state",
	Long: `Builds an Ansible dynamic-inventory JSON document from recorded
instance addresses, so provisioning can pick up right where apply left off.

Hosts come from the public_ip output of every instance in state; the
ssh_user output (or --ssh-user) sets ansible_user.`,
	RunE: runInventory,
}

func init() {
	inventoryCmd.Flags().StringVar(&inventoryGroup, "group", "web_servers", "Inventory group name for discovered hosts")
	inventoryCmd.Flags().StringVar(&inventorySSHUser, "ssh-user", "ec2-user", "Default ansible_user when state has no ssh_user output")
	inventoryCmd.Flags().BoolVar(&inventoryList, "list", true, "Emit the full inventory (Ansible dynamic inventory protocol)")
}

func runInventory(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(nil)
	if err != nil {
		return err
	}
	st, err := stateManager(dir).Read(cmd.Context())
	if err != nil {
		return err
	}

	inventory := buildInventory(st, inventoryGroup, inventorySSHUser)

	data, err := json.MarshalIndent(inventory, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func buildInventory(st *ir.State, group, defaultSSHUser string) map[string]any {
	sshUser := defaultSSHUser
	if u, ok := st.Outputs["ssh_user"].(string); ok && u != "" {
		sshUser = u
	}

	var hosts []string
	seen := map[string]bool{}
	addHost := func(ip string) {
		if ip != "" && !seen[ip] {
			seen[ip] = true
			hosts = append(hosts, ip)
		}
	}

	for _, rec := range st.Resources {
		if ip, ok := rec.Outputs["public_ip"].(string); ok {
			addHost(ip)
		}
	}
	// Outputs may expose addresses for resources managed elsewhere.
	for name, v := range st.Outputs {
		if name == "public_ip" || name == "instance_public_ip" {
			if ip, ok := v.(string); ok {
				addHost(ip)
			}
		}
	}
	sort.Strings(hosts)

	hostvars := make(map[string]any, len(hosts))
	for _, ip := range hosts {
		hostvars[ip] = map[string]any{
			"ansible_host": ip,
			"ansible_user": sshUser,
		}
	}

	return map[string]any{
		group: map[string]any{
			"hosts": hosts,
			"vars":  map[string]any{"ansible_user": sshUser},
		},
		"_meta": map[string]any{"hostvars": hostvars},
	}
}
