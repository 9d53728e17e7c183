/*
Package workflow reads workflow definition documents.

A definition is a YAML (or JSON) document naming a kernel, its clauses and
its control metadata:

	id: morning-focus
	loop:
	  bounds: 5
	  entropy_cap: 0.22
	  exit_conditions: ["trigger.focus_started == true"]
	clauses:
	  - id: check
	    text: WHEN calendar.conflicts > 0 THEN set(blocked, true)
	  - id: focus
	    text: WHEN blocked == true THEN trigger(focus_started)
	    depends_on: [check]
	reflex:
	  triggers:
	    meeting_added: reshuffle
	  clauses:
	    reshuffle:
	      text: WHEN blocked == true THEN notify("team")
	      mode: append

Documents are decoded strictly: unknown keys are errors.
*/
package workflow
