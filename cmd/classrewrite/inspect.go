package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wippyai/jvm-rewrite/classfile"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE.class",
		Short: "Print methods, frame sizes and call sites of a class file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			c, err := classfile.Parse(data)
			if err != nil {
				return err
			}
			return inspect(cmd.OutOrStdout(), c, !s.NoColor)
		},
	}
	return cmd
}

func inspect(w io.Writer, c *classfile.Class, useColor bool) error {
	head := color.New(color.Bold)
	warn := color.New(color.FgYellow)
	if !useColor {
		head.DisableColor()
		warn.DisableColor()
	}

	head.Fprintf(w, "class %s", c.Name())
	if super := c.SuperName(); super != "" {
		fmt.Fprintf(w, " extends %s", super)
	}
	fmt.Fprintf(w, "\nversion %d.%d, %d constants, %d methods\n", c.Major, c.Minor, c.Pool.Count()-1, len(c.Methods))

	for _, m := range c.Methods {
		fmt.Fprintln(w)
		head.Fprintf(w, "%s%s", m.Name, m.Descriptor)
		if m.Static() {
			fmt.Fprint(w, " static")
		}
		fmt.Fprintln(w)
		if m.Code == nil {
			fmt.Fprintln(w, "  no code")
			continue
		}

		stack, locals := m.Code.MaxStack, m.Code.MaxLocals
		if err := m.Code.ComputeMaxs(c.Pool, m.Static(), m.Descriptor); err != nil {
			return fmt.Errorf("%s%s: %w", m.Name, m.Descriptor, err)
		}
		fmt.Fprintf(w, "  max stack %d (computed %d), max locals %d (computed %d)\n",
			stack, m.Code.MaxStack, locals, m.Code.MaxLocals)
		if stack < m.Code.MaxStack || locals < m.Code.MaxLocals {
			warn.Fprintln(w, "  declared sizes are smaller than computed")
		}

		for _, ins := range m.Code.Instructions {
			if !ins.IsInvoke() {
				continue
			}
			fmt.Fprintf(w, "  %-16s %s\n", classfile.OpName(ins.Opcode), describeCall(c, ins))
		}
	}
	return nil
}

func describeCall(c *classfile.Class, ins classfile.Instruction) string {
	idx, _ := ins.PoolIndex()
	if ins.Opcode == classfile.OpInvokedynamic {
		name, desc, err := c.Pool.Dynamic(idx)
		if err != nil {
			return fmt.Sprintf("#%d", idx)
		}
		return name + desc
	}
	ref, err := c.Pool.Member(idx)
	if err != nil {
		return fmt.Sprintf("#%d", idx)
	}
	var b strings.Builder
	b.WriteString(ref.Owner)
	b.WriteByte('.')
	b.WriteString(ref.Name)
	b.WriteString(ref.Descriptor)
	if ref.Interface {
		b.WriteString(" (interface)")
	}
	return b.String()
}
