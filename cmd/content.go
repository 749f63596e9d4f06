package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/storyteller/internal/store"
)

// contentFile is the YAML layout accepted by the import commands.
//
//	instructions:
//	  - name: tone
//	    value: Keep sentences short.
//	documents:
//	  - title: Fractions unit
//	    summary: Halves and quarters with pizza examples.
type contentFile struct {
	Instructions []instructionEntry `yaml:"instructions"`
	Documents    []documentEntry    `yaml:"documents"`
}

type instructionEntry struct {
	Name   string `yaml:"name"`
	Value  string `yaml:"value"`
	Active *bool  `yaml:"active"`
}

type documentEntry struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	Indexed *bool  `yaml:"indexed"`
	Active  *bool  `yaml:"active"`
}

func loadContentFile(path string) (*contentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parseContent(data)
}

func parseContent(data []byte) (*contentFile, error) {
	var f contentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse content file: %w", err)
	}
	for i, in := range f.Instructions {
		if strings.TrimSpace(in.Name) == "" {
			return nil, fmt.Errorf("instruction %d: name is required", i+1)
		}
	}
	for i, d := range f.Documents {
		if strings.TrimSpace(d.Title) == "" {
			return nil, fmt.Errorf("document %d: title is required", i+1)
		}
	}
	return &f, nil
}

// boolOr reads an optional YAML flag; entries are on unless switched off.
func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

var instructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "Manage teacher instructions",
}

var instructionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teacher instructions",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		list, err := s.Instructions().List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No instructions.")
			return nil
		}
		for _, in := range list {
			state := "active"
			if !in.Active {
				state = "inactive"
			}
			fmt.Printf("%-20s  %-8s  %s\n", in.Name, state, in.Value)
		}
		return nil
	},
}

var instructionsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Create or replace an instruction",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inactive, _ := cmd.Flags().GetBool("inactive")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Instructions().Upsert(cmd.Context(), args[0], args[1], !inactive); err != nil {
			return err
		}
		fmt.Printf("Instruction %q saved.\n", args[0])
		return nil
	},
}

var instructionsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import instructions and documents from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadContentFile(args[0])
		if err != nil {
			return err
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		for _, in := range f.Instructions {
			if err := s.Instructions().Upsert(ctx, in.Name, in.Value, boolOr(in.Active, true)); err != nil {
				return fmt.Errorf("instruction %q: %w", in.Name, err)
			}
		}
		for _, d := range f.Documents {
			doc := store.Document{
				Title:   d.Title,
				Summary: d.Summary,
				Indexed: boolOr(d.Indexed, true),
				Active:  boolOr(d.Active, true),
			}
			if err := s.Documents().Upsert(ctx, doc); err != nil {
				return fmt.Errorf("document %q: %w", d.Title, err)
			}
		}
		fmt.Printf("Imported %d instructions and %d documents.\n", len(f.Instructions), len(f.Documents))
		return nil
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect lesson documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lesson documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		docs, err := s.Documents().List(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("No documents.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%-4d  %-30s  indexed=%-5v  active=%-5v  %s\n",
				d.ID, truncate(d.Title, 30), d.Indexed, d.Active, truncate(d.Summary, 60))
		}
		return nil
	},
}

func init() {
	instructionsSetCmd.Flags().Bool("inactive", false, "Store the instruction without applying it")

	instructionsCmd.AddCommand(instructionsListCmd)
	instructionsCmd.AddCommand(instructionsSetCmd)
	instructionsCmd.AddCommand(instructionsImportCmd)

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import documents from a YAML file (same layout as instructions import)",
		Args:  cobra.ExactArgs(1),
		RunE:  instructionsImportCmd.RunE,
	})
}
