package sqltext

import "github.com/satishbabariya/sqltyped/internal/core/schema/domain"

// returnKind says how a function's result type is derived.
type returnKind int

const (
	// fixed functions always return the registered type.
	fixed returnKind = iota
	// firstArg functions return the type of their first argument.
	firstArg
	// numericArgs return real when any argument is real, else integer.
	numericArgs
	// commonArgs return the type shared by every argument, else any.
	commonArgs
)

type function struct {
	kind returnKind
	typ  domain.ColumnType
	// notNull functions never return null.
	notNull bool
	// nullOnNull functions return null only when an argument is null.
	nullOnNull bool
	aggregate  bool
	window     bool
	json       bool
}

var functions = map[string]function{
	// aggregates
	"count":        {typ: domain.TypeInteger, notNull: true, aggregate: true},
	"total":        {typ: domain.TypeReal, notNull: true, aggregate: true},
	"sum":          {kind: numericArgs, aggregate: true},
	"avg":          {typ: domain.TypeReal, aggregate: true},
	"min":          {kind: commonArgs, aggregate: true},
	"max":          {kind: commonArgs, aggregate: true},
	"group_concat": {typ: domain.TypeText, aggregate: true},
	"string_agg":   {typ: domain.TypeText, aggregate: true},

	// json
	"json":                {typ: domain.TypeJSON, nullOnNull: true, json: true},
	"jsonb":               {typ: domain.TypeJSON, nullOnNull: true, json: true},
	"json_array":          {typ: domain.TypeJSON, notNull: true, json: true},
	"jsonb_array":         {typ: domain.TypeJSON, notNull: true, json: true},
	"json_object":         {typ: domain.TypeJSON, notNull: true, json: true},
	"jsonb_object":        {typ: domain.TypeJSON, notNull: true, json: true},
	"json_group_array":    {typ: domain.TypeJSON, notNull: true, aggregate: true, json: true},
	"jsonb_group_array":   {typ: domain.TypeJSON, notNull: true, aggregate: true, json: true},
	"json_group_object":   {typ: domain.TypeJSON, notNull: true, aggregate: true, json: true},
	"json_insert":         {typ: domain.TypeJSON, nullOnNull: true, json: true},
	"json_replace":        {typ: domain.TypeJSON, nullOnNull: true, json: true},
	"json_set":            {typ: domain.TypeJSON, nullOnNull: true, json: true},
	"json_remove":         {typ: domain.TypeJSON, nullOnNull: true, json: true},
	"json_patch":          {typ: domain.TypeJSON, nullOnNull: true, json: true},
	"json_extract":        {typ: domain.TypeAny},
	"json_type":           {typ: domain.TypeText},
	"json_valid":          {typ: domain.TypeBoolean, notNull: true},
	"json_array_length":   {typ: domain.TypeInteger},
	"json_quote":          {typ: domain.TypeText, notNull: true},
	"json_error_position": {typ: domain.TypeInteger, nullOnNull: true},

	// text
	"lower":            {typ: domain.TypeText, nullOnNull: true},
	"upper":            {typ: domain.TypeText, nullOnNull: true},
	"trim":             {typ: domain.TypeText, nullOnNull: true},
	"ltrim":            {typ: domain.TypeText, nullOnNull: true},
	"rtrim":            {typ: domain.TypeText, nullOnNull: true},
	"replace":          {typ: domain.TypeText, nullOnNull: true},
	"substr":           {typ: domain.TypeText, nullOnNull: true},
	"substring":        {typ: domain.TypeText, nullOnNull: true},
	"printf":           {typ: domain.TypeText, nullOnNull: true},
	"format":           {typ: domain.TypeText, nullOnNull: true},
	"hex":              {typ: domain.TypeText, notNull: true},
	"quote":            {typ: domain.TypeText, notNull: true},
	"char":             {typ: domain.TypeText, notNull: true},
	"concat":           {typ: domain.TypeText, notNull: true},
	"concat_ws":        {typ: domain.TypeText, nullOnNull: true},
	"soundex":          {typ: domain.TypeText, notNull: true},
	"typeof":           {typ: domain.TypeText, notNull: true},
	"unistr":           {typ: domain.TypeText, nullOnNull: true},
	"sqlite_version":   {typ: domain.TypeText, notNull: true},
	"sqlite_source_id": {typ: domain.TypeText, notNull: true},
	"highlight":        {typ: domain.TypeText, notNull: true},
	"snippet":          {typ: domain.TypeText, notNull: true},

	// numeric
	"abs":               {kind: firstArg, nullOnNull: true},
	"length":            {typ: domain.TypeInteger, nullOnNull: true},
	"octet_length":      {typ: domain.TypeInteger, nullOnNull: true},
	"instr":             {typ: domain.TypeInteger, nullOnNull: true},
	"unicode":           {typ: domain.TypeInteger, nullOnNull: true},
	"sign":              {typ: domain.TypeInteger, nullOnNull: true},
	"round":             {typ: domain.TypeReal, nullOnNull: true},
	"ceil":              {typ: domain.TypeReal, nullOnNull: true},
	"ceiling":           {typ: domain.TypeReal, nullOnNull: true},
	"floor":             {typ: domain.TypeReal, nullOnNull: true},
	"trunc":             {typ: domain.TypeReal, nullOnNull: true},
	"sqrt":              {typ: domain.TypeReal},
	"pow":               {typ: domain.TypeReal},
	"power":             {typ: domain.TypeReal},
	"exp":               {typ: domain.TypeReal, nullOnNull: true},
	"ln":                {typ: domain.TypeReal},
	"log":               {typ: domain.TypeReal},
	"log2":              {typ: domain.TypeReal},
	"log10":             {typ: domain.TypeReal},
	"mod":               {typ: domain.TypeReal},
	"pi":                {typ: domain.TypeReal, notNull: true},
	"sin":               {typ: domain.TypeReal, nullOnNull: true},
	"cos":               {typ: domain.TypeReal, nullOnNull: true},
	"tan":               {typ: domain.TypeReal, nullOnNull: true},
	"degrees":           {typ: domain.TypeReal, nullOnNull: true},
	"radians":           {typ: domain.TypeReal, nullOnNull: true},
	"random":            {typ: domain.TypeInteger, notNull: true},
	"changes":           {typ: domain.TypeInteger, notNull: true},
	"total_changes":     {typ: domain.TypeInteger, notNull: true},
	"last_insert_rowid": {typ: domain.TypeInteger, notNull: true},
	"bm25":              {typ: domain.TypeReal, notNull: true},

	// blob
	"randomblob": {typ: domain.TypeBlob, notNull: true},
	"zeroblob":   {typ: domain.TypeBlob, notNull: true},
	"unhex":      {typ: domain.TypeBlob},

	// date and time
	"date":      {typ: domain.TypeDate},
	"datetime":  {typ: domain.TypeDate},
	"time":      {typ: domain.TypeText},
	"strftime":  {typ: domain.TypeText},
	"timediff":  {typ: domain.TypeText},
	"julianday": {typ: domain.TypeReal},
	"unixepoch": {typ: domain.TypeInteger},

	// conditional
	"coalesce": {kind: commonArgs},
	"ifnull":   {kind: commonArgs},
	"iif":      {kind: commonArgs},
	"if":       {kind: commonArgs},
	"nullif":   {kind: firstArg},
	"likely":   {kind: firstArg, nullOnNull: true},
	"unlikely": {kind: firstArg, nullOnNull: true},
	"like":     {typ: domain.TypeBoolean, nullOnNull: true},
	"glob":     {typ: domain.TypeBoolean, nullOnNull: true},

	// window
	"row_number":   {typ: domain.TypeInteger, notNull: true, window: true},
	"rank":         {typ: domain.TypeInteger, notNull: true, window: true},
	"dense_rank":   {typ: domain.TypeInteger, notNull: true, window: true},
	"ntile":        {typ: domain.TypeInteger, notNull: true, window: true},
	"percent_rank": {typ: domain.TypeReal, notNull: true, window: true},
	"cume_dist":    {typ: domain.TypeReal, notNull: true, window: true},
	"lag":          {kind: firstArg, window: true},
	"lead":         {kind: firstArg, window: true},
	"first_value":  {kind: firstArg, window: true},
	"last_value":   {kind: firstArg, window: true},
	"nth_value":    {kind: firstArg, window: true},
}

// IsAggregate reports whether name is a known aggregate function.
func IsAggregate(name string) bool {
	return functions[name].aggregate
}

// FunctionType returns the registered result type of a fixed-type function.
// The second result is false for unknown functions and for functions whose
// type depends on their arguments.
func FunctionType(name string) (domain.ColumnType, bool) {
	fn, ok := functions[name]
	if !ok || fn.kind != fixed {
		return "", false
	}
	return fn.typ, true
}

// NotNull reports whether the function never returns null.
func NotNull(name string) bool {
	return functions[name].notNull
}

// jsonEachColumns are the columns of the json_each and json_tree
// table-valued functions.
var jsonEachColumns = []domain.ParsedColumn{
	{Name: "key", Type: domain.TypeAny, Nullable: true},
	{Name: "value", Type: domain.TypeAny, Nullable: true},
	{Name: "type", Type: domain.TypeText},
	{Name: "atom", Type: domain.TypeAny, Nullable: true},
	{Name: "id", Type: domain.TypeInteger},
	{Name: "parent", Type: domain.TypeInteger, Nullable: true},
	{Name: "fullkey", Type: domain.TypeText},
	{Name: "path", Type: domain.TypeText},
}

// pragmaColumns are the result columns of the supported pragmas.
var pragmaColumns = map[string][]domain.ParsedColumn{
	"table_info": {
		{Name: "cid", Type: domain.TypeInteger},
		{Name: "name", Type: domain.TypeText},
		{Name: "type", Type: domain.TypeText},
		{Name: "notnull", Type: domain.TypeBoolean},
		{Name: "dflt_value", Type: domain.TypeAny, Nullable: true},
		{Name: "pk", Type: domain.TypeInteger},
	},
	"index_list": {
		{Name: "seq", Type: domain.TypeInteger},
		{Name: "name", Type: domain.TypeText},
		{Name: "unique", Type: domain.TypeBoolean},
		{Name: "origin", Type: domain.TypeText},
		{Name: "partial", Type: domain.TypeBoolean},
	},
	"foreign_key_list": {
		{Name: "id", Type: domain.TypeInteger},
		{Name: "seq", Type: domain.TypeInteger},
		{Name: "table", Type: domain.TypeText},
		{Name: "from", Type: domain.TypeText},
		{Name: "to", Type: domain.TypeText, Nullable: true},
		{Name: "on_update", Type: domain.TypeText},
		{Name: "on_delete", Type: domain.TypeText},
		{Name: "match", Type: domain.TypeText},
	},
}
