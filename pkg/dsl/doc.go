/*
Package dsl builds workflow definitions in Go instead of YAML.

The builder produces the same workflow.Definition the YAML parser yields, so
the result compiles with Engine.CompileWorkflow and gets identical validation.

Example usage:

	b := dsl.New("focus")

	b.Clause("check", "WHEN calendar.conflicts > 0 THEN set(blocked, true)")
	b.Clause("focus", "WHEN blocked == true THEN trigger(focus_started)").
		After("check")

	b.Bounds(5).ExitWhen("trigger.focus_started == true")
	b.On("meeting_added", "notify", "WHEN blocked == true THEN set(notified, true)")
	b.Typed("calendar.conflicts", "int").Context("calendar.conflicts", 2)

	def, err := b.Build()
	if err != nil {
		return err
	}
	ko, vars, err := engine.CompileWorkflow(def)
*/
package dsl
