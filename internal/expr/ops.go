package expr

// Operator tags of the Rapids grammar used by this client.
const (
	OpComma = ","

	// assignment
	OpTmpAssign   = "tmp="
	OpGlobalPut   = "gput"
	OpRemoveFrame = "removeframe"

	// arithmetic
	OpAdd    = "+"
	OpSub    = "-"
	OpMul    = "*"
	OpDiv    = "/"
	OpMod    = "%"
	OpPow    = "^"
	OpIntDiv = "intDiv"

	// relational
	OpLt = "<"
	OpLe = "<="
	OpGt = ">"
	OpGe = ">="
	OpEq = "=="
	OpNe = "!="

	// logical
	OpAnd    = "&"
	OpOr     = "|"
	OpNot    = "!"
	OpIfElse = "ifelse"

	// unary math
	OpAbs     = "abs"
	OpSqrt    = "sqrt"
	OpLog     = "log"
	OpExp     = "exp"
	OpFloor   = "floor"
	OpCeiling = "ceiling"
	OpIsNA    = "is.na"

	// reducers
	OpSum     = "sum"
	OpMean    = "mean"
	OpMin     = "min"
	OpMax     = "max"
	OpSdev    = "sd"
	OpNrow    = "nrow"
	OpNcol    = "ncol"
	OpFlatten = "flatten"

	// mungers
	OpCols      = "cols"
	OpRows      = "rows"
	OpCbind     = "cbind"
	OpRbind     = "rbind"
	OpAsFactor  = "as.factor"
	OpAsNumeric = "as.numeric"
	OpUnique    = "unique"
	OpWhich     = "h2o.which"
	OpGroupBy   = "GB"

	// cluster
	OpStoreSize = "store_size"
)
