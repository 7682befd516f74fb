package prompt

// defaultRules is the built-in rule table. Order matters: specific prompts
// come before the generic yes/no catch-all, and a kind may be recognised by
// several rules (one per language).
var defaultRules = []Rule{
	// dpkg: "*** sources.list (Y/I/N/O/D/Z) [default=N] ?"
	// Y installs the package maintainer's version of the file.
	{Kind: KindConffileConflict, Matcher: MustRegex(`\(Y/I/N/O/D/Z\)\s*\[default[ =]*[A-Z]\]`), Response: "Y"},

	// debconf keyboard-configuration questions.
	{Kind: KindKeyboardLayout, Matcher: MustRegex(`keyboard (layout|model|variant)`), Response: AcceptDefault},
	{Kind: KindKeyboardLayout, Matcher: Literal("Раскладка клавиатуры"), Response: AcceptDefault},
	{Kind: KindKeyboardLayout, Matcher: Literal("Модель клавиатуры"), Response: AcceptDefault},

	// debconf readline frontend title.
	{Kind: KindPackageConfig, Matcher: Literal("Настройка пакета"), Response: AcceptDefault},
	{Kind: KindPackageConfig, Matcher: Literal("Package configuration"), Response: AcceptDefault},

	{Kind: KindRestartServices, Matcher: MustRegex(`restart services during package upgrades without asking\?`), Response: "yes"},
	{Kind: KindRestartServices, Matcher: Literal("Перезапускать службы при обновлении пакетов без запроса?"), Response: "yes"},

	// apt-get without -y; the default answer is yes in every locale.
	{Kind: KindAptContinue, Matcher: MustRegex(`do you want to continue\?\s*\[Y/n\]`), Response: AcceptDefault},
	{Kind: KindAptContinue, Matcher: Literal("Хотите продолжить?"), Response: AcceptDefault},

	{Kind: KindPressEnter, Matcher: MustRegex(`press \[?enter\]?|press any key`), Response: AcceptDefault},
	{Kind: KindPressEnter, Matcher: MustRegex(`нажмите \[?enter\]?|нажмите любую клавишу`), Response: AcceptDefault},

	{Kind: KindYesNo, Matcher: MustRegex(`\[y/n\]|\(y/n\)|\[yes/no\]`), Response: DefaultResponse},
}

// Default returns the registry used for package-manager and Wine tooling.
func Default() *Registry {
	return NewRegistry(defaultRules...)
}
