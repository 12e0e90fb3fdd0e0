package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/speechbox/server/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// boxFile is the provisioning file format:
//
//	boxes:
//	  - id: 1
//	    description: Library
//	    country_code: "61"
//	    timezone: Australia/Sydney
type boxFile struct {
	Boxes []boxEntry `yaml:"boxes"`
}

type boxEntry struct {
	ID          int        `yaml:"id"`
	Description string     `yaml:"description"`
	CountryCode string     `yaml:"country_code"`
	Timezone    string     `yaml:"timezone"`
	Latitude    *float64   `yaml:"latitude,omitempty"`
	Longitude   *float64   `yaml:"longitude,omitempty"`
	Photo       *string    `yaml:"photo,omitempty"`
	DeployedAt  *time.Time `yaml:"deployed_at,omitempty"`
}

// NewBoxesCommand creates the boxes command group.
func NewBoxesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boxes",
		Short: "Manage recording boxes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "import <file.yaml>",
		Short:        "Insert or update boxes from a YAML file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			boxes, err := parseBoxes(f)
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.service().ProvisionBoxes(cmd.Context(), boxes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d boxes provisioned\n", len(boxes))
			return nil
		},
	})
	return cmd
}

func parseBoxes(r io.Reader) ([]model.Box, error) {
	var file boxFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse box file: %w", err)
	}

	seen := make(map[int]bool, len(file.Boxes))
	boxes := make([]model.Box, 0, len(file.Boxes))
	for i, b := range file.Boxes {
		if b.ID <= 0 {
			return nil, fmt.Errorf("box #%d: id must be positive", i+1)
		}
		if b.CountryCode == "" {
			return nil, fmt.Errorf("box %d: country_code is required", b.ID)
		}
		if seen[b.ID] {
			return nil, fmt.Errorf("box %d: listed twice", b.ID)
		}
		seen[b.ID] = true

		tz := b.Timezone
		if tz == "" {
			tz = "UTC"
		}
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("box %d: %w", b.ID, err)
		}
		boxes = append(boxes, model.Box{
			ID:          model.BoxID(b.ID),
			Description: b.Description,
			CountryCode: b.CountryCode,
			Timezone:    tz,
			Latitude:    b.Latitude,
			Longitude:   b.Longitude,
			Photo:       b.Photo,
			DeployedAt:  b.DeployedAt,
		})
	}
	return boxes, nil
}
