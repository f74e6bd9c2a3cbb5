/*
Package expr processes SQL templates written for sqldao. It splits the
template into verbatim chunks, named parameter references (@name) and list
placeholders (@LIST_name), and renders the template into driver ready SQL
with positional placeholders. It does not interact with databases.

# Parsing stage

The parser walks the template once. String literals, quoted identifiers and
comments are passed through untouched so that an @ sign inside them is never
taken for a parameter. MySQL system variables (@@name) are also left alone.

# List stage

A list placeholder stands in for a variable number of values. Replacing it
yields a new template in which the placeholder is spelled out as a comma
separated list of parameter references. The result is parsed again like any
other template.

# Render stage

Rendering replaces every parameter reference whose name is bound with the
dialect's placeholder for its position, and returns the arguments in the
same order. References without a bound value are written out verbatim.
*/
package expr
