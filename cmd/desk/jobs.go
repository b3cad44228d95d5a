package main

import (
	"fmt"

	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/spf13/cobra"
)

func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [recipient-id]",
		Short: "Queue a cover letter for a recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newConsole()
			sch := domain.MustLookup(domain.KindRecipient)
			if err := c.Refresh(cmd.Context(), sch.Kind); err != nil {
				return err
			}
			r, err := findRecord(c, sch, args[0])
			if err != nil {
				return err
			}

			if err := newClient().Generate(cmd.Context(), r.ID); err != nil {
				return err
			}
			fmt.Printf("Generation queued for %s.\n", sch.LabelOf(r))
			return nil
		},
	}
}

func refineCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "refine [cover-letter-id]",
		Short: "Queue a refinement of a cover letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newConsole()
			sch := domain.MustLookup(domain.KindCoverLetter)
			if err := c.Refresh(cmd.Context(), sch.Kind); err != nil {
				return err
			}
			r, err := findRecord(c, sch, args[0])
			if err != nil {
				return err
			}

			if err := newClient().Refine(cmd.Context(), r.ID, prompt); err != nil {
				return err
			}
			fmt.Println("Refinement queued.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "m", "", "refinement instructions")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [cover-letter-id]",
		Short: "Queue a cover letter for mailing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newConsole()
			sch := domain.MustLookup(domain.KindCoverLetter)
			if err := c.Refresh(cmd.Context(), sch.Kind); err != nil {
				return err
			}
			r, err := findRecord(c, sch, args[0])
			if err != nil {
				return err
			}

			if err := newClient().Send(cmd.Context(), r.ID); err != nil {
				return err
			}
			fmt.Println("Email queued.")
			return nil
		},
	}
}
