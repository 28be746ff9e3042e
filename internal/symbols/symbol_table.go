// symbols/symbol_table.go - Main symbol table entry point
//
// The table is split into focused files:
// - symbol_table_core.go: Assembly, Member and SymbolTable types
// - symbol_table_init.go: corlib bootstrap (System.Object, System.ValueType, primitives)
// - symbol_table_operations.go: defining assemblies, types and members
// - symbol_table_resolution.go: name lookup, well-known types, metadata references

package symbols
