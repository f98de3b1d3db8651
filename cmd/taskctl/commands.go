package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"taskboard/internal/client"
	"taskboard/internal/model"
)

func (a *app) signupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			ctx, cancel := commandContext(cmd)
			defer cancel()
			u, err := a.store.Signup(ctx, name, email, password)
			if err != nil {
				return err
			}
			if err := a.saveSession(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed up as %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringP("name", "n", "", "Display name")
	cmd.Flags().StringP("email", "e", "", "Email address")
	cmd.Flags().StringP("password", "p", "", "Password")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			ctx, cancel := commandContext(cmd)
			defer cancel()
			u, err := a.store.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := a.saveSession(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringP("email", "e", "", "Email address")
	cmd.Flags().StringP("password", "p", "", "Password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			err := a.store.Logout(ctx)
			if rmErr := removeSession(a.sessionFile()); rmErr != nil {
				return rmErr
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			u, err := a.api.Me(ctx)
			if errors.Is(err, model.ErrUnauthenticated) {
				fmt.Fprintln(a.out, "Not logged in")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, _ := cmd.Flags().GetString("view")

			ctx, cancel := commandContext(cmd)
			defer cancel()
			tasks, err := a.api.ListTasks(ctx, view)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(a.out, "No tasks.")
				return nil
			}
			for i := range tasks {
				a.printTask(&tasks[i])
			}
			return nil
		},
	}
	cmd.Flags().StringP("view", "v", "all", "View: all, today, important, remaining")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			important, _ := cmd.Flags().GetBool("important")
			notes, _ := cmd.Flags().GetString("notes")
			status, _ := cmd.Flags().GetString("status")

			ctx, cancel := commandContext(cmd)
			defer cancel()
			t, err := a.store.Add(ctx, client.TaskInput{
				Title:     args[0],
				Date:      date,
				Status:    model.Status(status),
				Important: important,
				Notes:     notes,
			})
			if err != nil {
				return err
			}
			a.printTask(t)
			return nil
		},
	}
	cmd.Flags().StringP("date", "d", "", "Due day, YYYY-MM-DD (default today)")
	cmd.Flags().BoolP("important", "i", false, "Mark as important")
	cmd.Flags().StringP("notes", "n", "", "Notes")
	cmd.Flags().StringP("status", "s", "", "Status: not-started, in-progress, completed")
	return cmd
}

// done marks a task completed. Updates replace the whole task, so the
// current copy is fetched first.
func (a *app) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done [id]",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			tasks, err := a.store.Tasks(ctx)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				if t.ID != id {
					continue
				}
				in := client.InputFrom(t)
				in.Status = model.StatusCompleted
				updated, err := a.store.Update(ctx, in)
				if err != nil {
					return err
				}
				a.printTask(updated)
				return nil
			}
			return fmt.Errorf("task %d not found", id)
		},
	}
}

func (a *app) importantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "important [id]",
		Short: "Toggle the important flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			t, err := a.store.ToggleImportant(ctx, id)
			if err != nil {
				return err
			}
			a.printTask(t)
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := a.store.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted task %d\n", id)
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			granularity, _ := cmd.Flags().GetString("granularity")
			windows, _ := cmd.Flags().GetInt("windows")

			ctx, cancel := commandContext(cmd)
			defer cancel()
			sum, err := a.store.Stats(ctx, granularity, windows)
			if err != nil {
				return err
			}

			s := sum.Stats
			fmt.Fprintf(a.out, "Total: %d  Completed: %d  In progress: %d  Not started: %d  Important: %d\n",
				s.Total, s.Completed, s.InProgress, s.NotStarted, s.Important)
			fmt.Fprintf(a.out, "Completion rate: %d%%\n\n", s.CompletionRate)
			for _, b := range sum.Series {
				fmt.Fprintf(a.out, "  %-10s %3d\n", b.Label, b.Completed)
			}
			return nil
		},
	}
	cmd.Flags().StringP("granularity", "g", "monthly", "weekly, monthly or yearly")
	cmd.Flags().IntP("windows", "w", 6, "Number of periods")
	return cmd
}
