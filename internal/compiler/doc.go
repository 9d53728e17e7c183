// Package compiler parses WHEN/THEN clause text and runs clause actions.
package compiler
