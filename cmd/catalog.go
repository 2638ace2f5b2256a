package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/validation"
)

var (
	goalDailyTarget float64
	goalImpact      string
	goalTargetDate  string
	deliverableGoal string
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a goal",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalAdd,
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals",
	Args:  cobra.NoArgs,
	RunE:  runGoalList,
}

var deliverableCmd = &cobra.Command{
	Use:   "deliverable",
	Short: "Manage deliverables",
}

var deliverableAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a deliverable",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeliverableAdd,
}

var deliverableListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deliverables",
	Args:  cobra.NoArgs,
	RunE:  runDeliverableList,
}

var deliverableDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a deliverable completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeliverableDone,
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage the category list",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	Args:  cobra.NoArgs,
	RunE:  runCategoryList,
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>...",
	Short: "Add one or more categories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCategoryAdd,
}

func init() {
	goalAddCmd.Flags().Float64Var(&goalDailyTarget, "daily-target", 0, "Hours per day to spend on the goal")
	goalAddCmd.Flags().StringVar(&goalImpact, "impact", "", "Expected impact: low, medium, high")
	goalAddCmd.Flags().StringVar(&goalTargetDate, "target-date", "", "Target date (YYYY-MM-DD)")
	goalCmd.AddCommand(goalAddCmd, goalListCmd)

	deliverableAddCmd.Flags().StringVar(&deliverableGoal, "goal", "", "ID of the goal this deliverable serves")
	deliverableCmd.AddCommand(deliverableAddCmd, deliverableListCmd, deliverableDoneCmd)

	categoryCmd.AddCommand(categoryListCmd, categoryAddCmd)
}

type goalInput struct {
	Name        string  `validate:"required,max=200"`
	DailyTarget float64 `validate:"gte=0,lte=24"`
	Impact      string  `validate:"omitempty,oneof=low medium high"`
	TargetDate  string  `validate:"omitempty,datetime=2006-01-02"`
}

func runGoalAdd(cmd *cobra.Command, args []string) error {
	in := goalInput{
		Name:        validation.SanitizeText(args[0]),
		DailyTarget: goalDailyTarget,
		Impact:      strings.ToLower(goalImpact),
		TargetDate:  goalTargetDate,
	}
	if err := validation.Struct(in); err != nil {
		exit(exitUsage, err)
	}

	store := openStore()
	goals, err := store.Goals()
	if err != nil {
		exit(exitStorage, err)
	}
	g := model.Goal{
		ID:         uuid.NewString(),
		Name:       in.Name,
		Impact:     in.Impact,
		TargetDate: in.TargetDate,
	}
	if cmd.Flags().Changed("daily-target") {
		g.DailyTarget = &in.DailyTarget
	}
	if err := store.SaveGoals(append(goals, g)); err != nil {
		exit(exitStorage, err)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Added goal %q (%s)", g.Name, g.ID)))
	return nil
}

func runGoalList(cmd *cobra.Command, args []string) error {
	goals, err := openStore().Goals()
	if err != nil {
		exit(exitStorage, err)
	}
	printGoals(os.Stdout, goals)
	return nil
}

func printGoals(w io.Writer, goals []model.Goal) {
	if len(goals) == 0 {
		fmt.Fprintln(w, "No goals.")
		return
	}
	for _, g := range goals {
		line := g.ID + "  " + g.Name
		if g.DailyTarget != nil {
			line += fmt.Sprintf("  %.1fh/day", *g.DailyTarget)
		}
		if g.TargetDate != "" {
			line += "  by " + g.TargetDate
		}
		if g.Completed {
			line = dimStyle.Render(line + "  (done)")
		}
		fmt.Fprintln(w, line)
	}
}

type deliverableInput struct {
	Name   string `validate:"required,max=200"`
	GoalID string `validate:"max=100"`
}

func runDeliverableAdd(cmd *cobra.Command, args []string) error {
	in := deliverableInput{Name: validation.SanitizeText(args[0]), GoalID: strings.TrimSpace(deliverableGoal)}
	if err := validation.Struct(in); err != nil {
		exit(exitUsage, err)
	}

	store := openStore()
	if in.GoalID != "" {
		goals, err := store.Goals()
		if err != nil {
			exit(exitStorage, err)
		}
		if !hasGoal(goals, in.GoalID) {
			exit(exitUsage, fmt.Errorf("unknown goal %q", in.GoalID))
		}
	}
	ds, err := store.Deliverables()
	if err != nil {
		exit(exitStorage, err)
	}
	d := model.Deliverable{ID: uuid.NewString(), Name: in.Name, GoalID: in.GoalID}
	if err := store.SaveDeliverables(append(ds, d)); err != nil {
		exit(exitStorage, err)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Added deliverable %q (%s)", d.Name, d.ID)))
	return nil
}

func hasGoal(goals []model.Goal, id string) bool {
	for _, g := range goals {
		if g.ID == id {
			return true
		}
	}
	return false
}

func runDeliverableList(cmd *cobra.Command, args []string) error {
	ds, err := openStore().Deliverables()
	if err != nil {
		exit(exitStorage, err)
	}
	if len(ds) == 0 {
		fmt.Println("No deliverables.")
		return nil
	}
	for _, d := range ds {
		line := d.ID + "  " + d.Name
		if d.GoalID != "" {
			line += dimStyle.Render("  goal " + d.GoalID)
		}
		if d.Completed {
			line = dimStyle.Render(line + "  (done)")
		}
		fmt.Println(line)
	}
	return nil
}

func runDeliverableDone(cmd *cobra.Command, args []string) error {
	store := openStore()
	ds, err := store.Deliverables()
	if err != nil {
		exit(exitStorage, err)
	}
	found := false
	for i := range ds {
		if ds[i].ID == args[0] {
			ds[i].Completed = true
			found = true
		}
	}
	if !found {
		exit(exitUsage, fmt.Errorf("unknown deliverable %q", args[0]))
	}
	if err := store.SaveDeliverables(ds); err != nil {
		exit(exitStorage, err)
	}
	fmt.Println(successStyle.Render("Completed " + args[0]))
	return nil
}

func runCategoryList(cmd *cobra.Command, args []string) error {
	cats, err := openStore().Categories()
	if err != nil {
		exit(exitStorage, err)
	}
	for _, c := range cats {
		fmt.Println(c)
	}
	return nil
}

func runCategoryAdd(cmd *cobra.Command, args []string) error {
	store := openStore()
	cats, err := store.Categories()
	if err != nil {
		exit(exitStorage, err)
	}
	for _, a := range args {
		cats = append(cats, validation.SanitizeText(a))
	}
	if err := store.SaveCategories(cats); err != nil {
		exit(exitStorage, err)
	}
	saved, err := store.Categories()
	if err != nil {
		exit(exitStorage, err)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("%d categories: %s", len(saved), strings.Join(saved, ", "))))
	return nil
}
