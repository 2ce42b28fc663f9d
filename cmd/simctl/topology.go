package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wgsim/controller/internal/sim"
	"github.com/wgsim/controller/internal/topology"
	"github.com/wgsim/controller/pkg/network"
)

var topologyCmd = &cobra.Command{
	Use:   "topology [file]",
	Short: "Validate a topology file and print its graph",
	Long: `Load a TOML topology, validate it, and print every node with its
mirror index followed by the edge list. Without an argument the file named by
engine.topology is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTopologyCmd,
}

func init() {
	rootCmd.AddCommand(topologyCmd)
}

func runTopologyCmd(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Engine.Topology
	}

	topo, err := sim.LoadTopology(path)
	if err != nil {
		return err
	}
	engine := sim.New(topo, sim.Options{EventBuffer: 1})
	mirror := topology.FromSnapshot(engine.Topology())

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d drones, %d clients, %d servers\n",
		path, len(topo.Drones), len(topo.Clients), len(topo.Servers))
	labels := make(map[network.NodeID]string)
	for _, n := range mirror.Nodes() {
		labels[n.ID] = fmt.Sprintf("%c%d", n.Category.Letter(), n.ID)
		fmt.Fprintf(out, "  [%d] %s\n", n.Index, labels[n.ID])
	}
	for _, e := range mirror.Edges() {
		fmt.Fprintf(out, "  %s -- %s\n", labels[e.A], labels[e.B])
	}
	return nil
}
