package main

import (
	"bytes"
	_ "embed"
	"flag"
	"fmt"
	"go/format"
	"log"
	"os"
	"text/template"
)

type Variant struct {
	// Package is the package name.
	PackageName string

	// Name is the variant name: should be unique among variants.
	TypeName string

	// Path is the file path into which the generator will emit the code for this
	// variant.
	Path string

	ExtraImports string

	CommtypesPrefix string
}

func generate(v *Variant, code string) {
	tmpl, err := template.New("gen").Parse(code)
	if err != nil {
		log.Fatal("template Parse:", err)
	}

	var out bytes.Buffer
	err = tmpl.Execute(&out, v)
	if err != nil {
		log.Fatal("template Execute:", err)
	}

	formatted, err := format.Source(out.Bytes())
	if err != nil {
		println(out.String())
		log.Fatal("format:", err)
	}

	if err := os.WriteFile(v.Path, formatted, 0644); err != nil {
		log.Fatal("WriteFile:", err)
	}
}

func defaultVariant(fname, typeName, dirpath, packageName string, inCommtypes bool) *Variant {
	v := &Variant{
		PackageName: packageName,
		TypeName:    typeName,
		Path:        fmt.Sprintf("%s/%s_gen_serdeG.go", dirpath, fname),
	}
	if !inCommtypes {
		v.ExtraImports = "\"syncmerge-stream/pkg/commtypes\""
		v.CommtypesPrefix = "commtypes."
	}
	return v
}

func genSerde(fname, typeName, dirpath, packageName string, inCommtypes bool) {
	v := defaultVariant(fname, typeName, dirpath, packageName, inCommtypes)
	generate(v, serdeG)
}

func genSerdeTest(fname, typeName, dirpath, packageName string, inCommtypes bool) {
	v := defaultVariant(fname, typeName, dirpath, packageName, inCommtypes)
	v.Path = fmt.Sprintf("%s/%s_gen_serde_test.go", dirpath, fname)
	generate(v, serdeTest)
}

var FLAGS_commtypes_path string

func main() {
	flag.StringVar(&FLAGS_commtypes_path, "commtypes", "../pkg/commtypes", "commtypes package directory")
	flag.Parse()

	genSerde("entry_record", "EntryRecord", FLAGS_commtypes_path, "commtypes", true)
	genSerdeTest("entry_record", "EntryRecord", FLAGS_commtypes_path, "commtypes", true)
}

//go:embed serdeG.tmpl
var serdeG string

//go:embed serde_test.tmpl
var serdeTest string
